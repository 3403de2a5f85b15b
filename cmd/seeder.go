package cmd

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	"github.com/frahmantamala/fleet-ledger/internal/core/events"
	"github.com/frahmantamala/fleet-ledger/internal/driver"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
	"github.com/frahmantamala/fleet-ledger/internal/payment"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

const seedActor = "seeder"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample drivers, a week of lease debt each and a few payments against it.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		lg := logger.LoggerWrapper()

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gdb, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}
		clk, err := initClock(cfg.Ledger)
		if err != nil {
			log.Fatal(err)
		}

		bus := events.NewEventBus(lg)
		svcs, err := buildServices(cfg, db, gdb, clk, bus, lg)
		if err != nil {
			log.Fatalf("failed to build services: %v", err)
		}
		svcs.Audit.RegisterEventHandlers(bus)
		defer bus.Wait()

		if clearData {
			// children first, the foreign keys do not cascade from drivers
			for _, table := range []string{"ledger_audit_logs", "payment_allocations", "debt_records", "payments", "drivers"} {
				if err := gdb.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			lg.Info("cleared ledger tables")
		}

		ctx := context.Background()
		drivers := []driver.CreateDriverDTO{
			{Name: "Fadhil Rahman", Phone: "0712000001", LicenseNumber: "KDA-001A"},
			{Name: "Padil Mwangi", Phone: "0712000002", LicenseNumber: "KDB-002B"},
			{Name: "Amina Otieno", Phone: "0712000003", LicenseNumber: "KDC-003C"},
		}

		today := clock.Today(clk)
		dailyRate := decimal.NewFromInt(1000)

		for i, dto := range drivers {
			d, err := svcs.Drivers.Create(ctx, dto)
			if err != nil {
				log.Fatalf("failed to seed driver %s: %v", dto.Name, err)
			}

			var dates []string
			for day := 7; day >= 1; day-- {
				dates = append(dates, clock.FormatDate(today.AddDate(0, 0, -day)))
			}
			created, err := svcs.Reconciliation.CreateObligations(ctx, seedActor, d.ID, obligation.CreateObligationsDTO{
				Dates:  dates,
				Amount: &dailyRate,
				Notes:  "seeded",
			})
			if err != nil {
				log.Fatalf("failed to seed debts for %s: %v", d.Name, err)
			}
			lg.Info("seeded driver", "driver_id", d.ID, "name", d.Name, "debt_records", len(created))

			// the first driver pays nothing, the others clear part of the week
			if i == 0 {
				continue
			}
			amount := decimal.NewFromInt(int64(1500 * i))
			res, err := svcs.Reconciliation.RecordPayment(ctx, seedActor, d.ID, payment.RecordPaymentDTO{
				Amount:      amount,
				Channel:     payment.ChannelMpesa,
				CoversDays:  dates[:3],
				Remarks:     "seeded payment",
				PaymentDate: time.Now().Format(time.RFC3339),
			})
			if err != nil {
				log.Fatalf("failed to seed payment for %s: %v", d.Name, err)
			}
			lg.Info("seeded payment", "driver_id", d.ID, "reference", res.Payment.ReferenceNumber, "amount", amount.String())
		}

		lg.Info("seed complete")
	},
}
