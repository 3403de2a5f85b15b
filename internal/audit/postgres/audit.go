package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/fleet-ledger/internal/audit"
	auditDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/audit"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.RepositoryAPI {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, row *auditDatamodel.LedgerAuditLog) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *AuditRepository) List(ctx context.Context, filter audit.ListFilter, limit int) ([]*auditDatamodel.LedgerAuditLog, error) {
	q := r.db.WithContext(ctx)
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID > 0 {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if filter.DriverID > 0 {
		q = q.Where("driver_id = ?", filter.DriverID)
	}

	var rows []*auditDatamodel.LedgerAuditLog
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
