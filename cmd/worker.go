package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/fleet-ledger/internal/core/events"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that keep derived ledger columns fresh.`,
}

var overdueWorkerCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Refresh days_overdue on unpaid debt records",
	Long:  `Periodically recompute days_overdue for every unpaid debt record so list queries stay accurate between mutations.`,
	Run: func(cmd *cobra.Command, args []string) {
		startOverdueWorker()
	},
}

var (
	overdueInterval time.Duration
	overdueBatch    int
	overdueOnce     bool
)

func startOverdueWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gdb, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}
	clk, err := initClock(config.Ledger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	svcs, err := buildServices(config, db, gdb, clk, events.NewEventBus(lg), lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build services: %v\n", err)
		os.Exit(1)
	}

	interval := getDurationFlag(overdueInterval, config.Ledger.OverdueRefreshInterval)
	batch := getIntFlag(overdueBatch, config.Ledger.OverdueBatchSize)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	refresh := func() {
		if _, err := svcs.Obligations.RefreshOverdue(ctx, batch); err != nil && ctx.Err() == nil {
			lg.Error("overdue refresh failed", "error", err)
		}
	}

	refresh()
	if overdueOnce {
		return
	}

	lg.Info("overdue worker is running. Press Ctrl+C to stop.", "interval", interval, "batch_size", batch)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info("received signal, shutting down overdue worker")
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	overdueWorkerCmd.Flags().DurationVar(&overdueInterval, "interval", 0, "Refresh interval (overrides config)")
	overdueWorkerCmd.Flags().IntVar(&overdueBatch, "batch-size", 0, "Records per batch (overrides config)")
	overdueWorkerCmd.Flags().BoolVar(&overdueOnce, "once", false, "Run a single refresh and exit")

	workerCmd.AddCommand(overdueWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
