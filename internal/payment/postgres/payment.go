package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	paymentDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/fleet-ledger/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

// Create runs inside its own savepoint so a reference collision can be
// retried without aborting the surrounding transaction.
func (r *PaymentRepository) Create(ctx context.Context, p *paymentDatamodel.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(p).Error
	})
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*paymentDatamodel.Payment, error) {
	var p paymentDatamodel.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*paymentDatamodel.Payment, error) {
	var p paymentDatamodel.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&paymentDatamodel.Payment{}).
		Where("reference_number = ?", reference).
		Count(&count).Error
	return count > 0, err
}

func (r *PaymentRepository) Save(ctx context.Context, p *paymentDatamodel.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PaymentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&paymentDatamodel.Payment{}, id).Error
}

func (r *PaymentRepository) List(ctx context.Context, filter paymentpkg.ListFilter, limit, offset int) ([]*paymentDatamodel.Payment, int64, error) {
	q := r.db.WithContext(ctx).Model(&paymentDatamodel.Payment{})
	if filter.DriverID > 0 {
		q = q.Where("driver_id = ?", filter.DriverID)
	}
	if !filter.From.IsZero() {
		q = q.Where("payment_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		// inclusive of the whole end day
		q = q.Where("payment_date < ?", filter.To.AddDate(0, 0, 1))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CompletedOnly {
		q = q.Where("status = ?", paymentDatamodel.StatusCompleted)
	}
	if filter.Channel != "" {
		q = q.Where("payment_channel = ?", filter.Channel)
	}
	if filter.PendingReceiptOnly {
		q = q.Where("receipt_status = ?", paymentDatamodel.ReceiptPending)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []*paymentDatamodel.Payment
	err := q.Order("payment_date DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&payments).Error
	return payments, total, err
}
