package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/audit"
	auditPostgres "github.com/frahmantamala/fleet-ledger/internal/audit/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/auth"
	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	"github.com/frahmantamala/fleet-ledger/internal/core/events"
	"github.com/frahmantamala/fleet-ledger/internal/driver"
	driverPostgres "github.com/frahmantamala/fleet-ledger/internal/driver/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
	obligationPostgres "github.com/frahmantamala/fleet-ledger/internal/obligation/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/payment"
	paymentPostgres "github.com/frahmantamala/fleet-ledger/internal/payment/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/reconciliation"
	reconciliationPostgres "github.com/frahmantamala/fleet-ledger/internal/reconciliation/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/summary"
	summaryPostgres "github.com/frahmantamala/fleet-ledger/internal/summary/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
	"github.com/frahmantamala/fleet-ledger/internal/transport/rest"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Clock    clock.Clock
	EventBus *events.EventBus
	Router   *chi.Mux
	Handlers rest.Handlers
	Logger   *slog.Logger
}

// Services are shared by the HTTP server, the seeder and the workers.
type Services struct {
	Drivers        *driver.Service
	Obligations    *obligation.Service
	Payments       *payment.Service
	Reconciliation *reconciliation.Service
	Summary        *summary.Service
	Audit          *audit.Service
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.Handlers, deps.Config.Server.Origins(), deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		// let in-flight audit writes land before the pool goes away
		deps.EventBus.Wait()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gdb, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	clk, err := initClock(config.Ledger)
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(lg)
	svcs, err := buildServices(config, db, gdb, clk, bus, lg)
	if err != nil {
		return nil, err
	}
	svcs.Audit.RegisterEventHandlers(bus)

	base := transport.NewBaseHandler(lg)
	verifier := auth.NewJWTVerifier(config.Security.JWTSecret, config.Security.JWTIssuer)
	if !verifier.Enabled() {
		lg.Warn("jwt secret not configured, trusting actor header", "header", config.Security.ActorHeader)
	}

	return &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gdb,
		Clock:    clk,
		EventBus: bus,
		Router:   chi.NewRouter(),
		Logger:   lg,
		Handlers: rest.Handlers{
			Health:     rest.NewHealthHandler(db),
			Actor:      auth.NewMiddleware(base, verifier, config.Security.ActorHeader),
			Driver:     driver.NewHandler(base, svcs.Drivers),
			Obligation: obligation.NewHandler(base, svcs.Reconciliation),
			Payment:    payment.NewHandler(base, svcs.Reconciliation),
			Summary:    summary.NewHandler(base, svcs.Summary),
			Audit:      audit.NewHandler(base, svcs.Audit),
		},
	}, nil
}

func buildServices(config *internal.Config, db *sqlx.DB, gdb *gorm.DB, clk clock.Clock, publisher events.Publisher, lg *slog.Logger) (*Services, error) {
	defaultAmount, err := config.Ledger.DefaultAmount()
	if err != nil {
		return nil, err
	}

	drivers := driver.NewService(driverPostgres.NewDriverRepository(gdb), lg)
	obligations := obligation.NewService(obligationPostgres.NewObligationRepository(gdb), clk, lg)
	payments := payment.NewService(paymentPostgres.NewPaymentRepository(gdb), clk, payment.Options{
		ReferencePrefix:      config.Ledger.ReferencePrefix,
		ReferenceMaxAttempts: config.Ledger.ReferenceMaxAttempts,
	}, lg)

	recon := reconciliation.NewService(
		reconciliationPostgres.NewUnitOfWork(gdb, config.Database.LockTimeout),
		drivers,
		obligations,
		payments,
		publisher,
		clk,
		reconciliation.Options{DefaultExpectedAmount: defaultAmount},
		lg,
	)

	return &Services{
		Drivers:        drivers,
		Obligations:    obligations,
		Payments:       payments,
		Reconciliation: recon,
		Summary:        summary.NewService(summaryPostgres.NewSummaryRepository(db), drivers, obligations, clk, lg),
		Audit:          audit.NewService(auditPostgres.NewAuditRepository(gdb), lg),
	}, nil
}

func initClock(cfg internal.LedgerConfig) (clock.Clock, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger timezone: %w", err)
	}
	return clock.NewSystem(loc), nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm so both see the same connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
