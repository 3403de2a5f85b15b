package postgres

import (
	"context"

	"gorm.io/gorm"

	allocationDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/allocation"
	"github.com/frahmantamala/fleet-ledger/internal/reconciliation"
)

type AllocationRepository struct {
	db *gorm.DB
}

func NewAllocationRepository(db *gorm.DB) reconciliation.AllocationRepositoryAPI {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) Create(ctx context.Context, rows []*allocationDatamodel.PaymentAllocation) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *AllocationRepository) ListByPayment(ctx context.Context, paymentID int64) ([]*allocationDatamodel.PaymentAllocation, error) {
	var rows []*allocationDatamodel.PaymentAllocation
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *AllocationRepository) DeleteByPayment(ctx context.Context, paymentID int64) error {
	return r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Delete(&allocationDatamodel.PaymentAllocation{}).Error
}
