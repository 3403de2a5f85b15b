package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/fleet-ledger/internal/core/datamodel/allocation"
	obligationDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/obligation"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
)

type ObligationRepository struct {
	db *gorm.DB
}

func NewObligationRepository(db *gorm.DB) obligation.RepositoryAPI {
	return &ObligationRepository{db: db}
}

func (r *ObligationRepository) first(q *gorm.DB) (*obligationDatamodel.DebtRecord, error) {
	var rec obligationDatamodel.DebtRecord
	if err := q.First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *ObligationRepository) GetByID(ctx context.Context, id int64) (*obligationDatamodel.DebtRecord, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *ObligationRepository) GetByIDForUpdate(ctx context.Context, id int64) (*obligationDatamodel.DebtRecord, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *ObligationRepository) FindByDriverAndDate(ctx context.Context, driverID int64, date time.Time) (*obligationDatamodel.DebtRecord, error) {
	return r.first(r.db.WithContext(ctx).
		Where("driver_id = ? AND earning_date = ?", driverID, date))
}

func (r *ObligationRepository) InsertIfAbsent(ctx context.Context, record *obligationDatamodel.DebtRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}, {Name: "earning_date"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ObligationRepository) ListForUpdate(ctx context.Context, driverID int64, dates []time.Time) ([]*obligationDatamodel.DebtRecord, error) {
	var records []*obligationDatamodel.DebtRecord
	if len(dates) == 0 {
		return records, nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("driver_id = ? AND earning_date IN ?", driverID, dates).
		Order("earning_date ASC").
		Find(&records).Error
	return records, err
}

func (r *ObligationRepository) ListByIDsForUpdate(ctx context.Context, ids []int64) ([]*obligationDatamodel.DebtRecord, error) {
	var records []*obligationDatamodel.DebtRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("earning_date ASC").
		Find(&records).Error
	return records, err
}

func (r *ObligationRepository) ListByPaymentID(ctx context.Context, paymentID int64) ([]*obligationDatamodel.DebtRecord, error) {
	var records []*obligationDatamodel.DebtRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_id = ?", paymentID).
		Order("earning_date ASC").
		Find(&records).Error
	return records, err
}

func (r *ObligationRepository) ListByDriver(ctx context.Context, driverID int64, filter obligation.ListFilter) ([]*obligationDatamodel.DebtRecord, error) {
	q := r.db.WithContext(ctx).Where("driver_id = ?", driverID)
	if filter.UnpaidOnly {
		q = q.Where("is_paid = ?", false)
	}
	from, to := filter.Bounds()
	if !from.IsZero() {
		q = q.Where("earning_date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("earning_date <= ?", to)
	}

	order := "earning_date ASC"
	if filter.Direction == obligation.DirectionDesc {
		order = "earning_date DESC"
	}

	var records []*obligationDatamodel.DebtRecord
	err := q.Order(order).Find(&records).Error
	return records, err
}

func (r *ObligationRepository) ListUnpaidAfter(ctx context.Context, afterID int64, limit int) ([]*obligationDatamodel.DebtRecord, error) {
	var records []*obligationDatamodel.DebtRecord
	err := r.db.WithContext(ctx).
		Where("is_paid = ? AND id > ?", false, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *ObligationRepository) CountAllocations(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&allocation.PaymentAllocation{}).
		Where("debt_record_id = ?", id).
		Count(&count).Error
	return count, err
}

func (r *ObligationRepository) Save(ctx context.Context, record *obligationDatamodel.DebtRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *ObligationRepository) UpdateOverdue(ctx context.Context, id int64, daysOverdue int) error {
	return r.db.WithContext(ctx).
		Model(&obligationDatamodel.DebtRecord{}).
		Where("id = ? AND is_paid = ?", id, false).
		UpdateColumn("days_overdue", daysOverdue).Error
}

func (r *ObligationRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&obligationDatamodel.DebtRecord{}, id).Error
}
