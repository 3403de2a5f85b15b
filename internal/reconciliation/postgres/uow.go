package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	driverPostgres "github.com/frahmantamala/fleet-ledger/internal/driver/postgres"
	obligationPostgres "github.com/frahmantamala/fleet-ledger/internal/obligation/postgres"
	paymentPostgres "github.com/frahmantamala/fleet-ledger/internal/payment/postgres"
	"github.com/frahmantamala/fleet-ledger/internal/reconciliation"
)

// UnitOfWork runs ledger mutations in one gorm transaction and hands out
// repositories bound to it.
type UnitOfWork struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewUnitOfWork(db *gorm.DB, lockTimeout time.Duration) *UnitOfWork {
	return &UnitOfWork{db: db, lockTimeout: lockTimeout}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(repos reconciliation.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a waiter gives up with 55P03 instead of queueing forever
		if u.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(NewRepositories(tx))
	})
}

func NewRepositories(db *gorm.DB) reconciliation.Repositories {
	return reconciliation.Repositories{
		Drivers:     driverPostgres.NewDriverRepository(db),
		Obligations: obligationPostgres.NewObligationRepository(db),
		Payments:    paymentPostgres.NewPaymentRepository(db),
		Allocations: NewAllocationRepository(db),
	}
}
