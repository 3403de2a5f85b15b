// Package testutil opens throwaway sqlite databases carrying the ledger schema.
package testutil

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/fleet-ledger/internal/core/datamodel/allocation"
	"github.com/frahmantamala/fleet-ledger/internal/core/datamodel/audit"
	"github.com/frahmantamala/fleet-ledger/internal/core/datamodel/driver"
	"github.com/frahmantamala/fleet-ledger/internal/core/datamodel/obligation"
	"github.com/frahmantamala/fleet-ledger/internal/core/datamodel/payment"
)

// OpenSQLite returns an in-memory database with every ledger table migrated.
// The pool is pinned to one connection because each new sqlite ":memory:"
// connection would otherwise see an empty database.
func OpenSQLite() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&driver.Driver{},
		&obligation.DebtRecord{},
		&payment.Payment{},
		&allocation.PaymentAllocation{},
		&audit.LedgerAuditLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

// SQLX exposes the same connection to code that runs raw aggregate queries.
func SQLX(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sqlDB, "sqlite3"), nil
}

// SeedDriver inserts a driver row and returns its id.
func SeedDriver(db *gorm.DB, name string) (int64, error) {
	d := &driver.Driver{Name: name, Phone: "0700000000", LicenseNumber: "LIC-" + name, IsActive: true}
	if err := db.Create(d).Error; err != nil {
		return 0, err
	}
	return d.ID, nil
}
