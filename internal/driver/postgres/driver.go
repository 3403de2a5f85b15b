package postgres

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	driverDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/driver"
	"github.com/frahmantamala/fleet-ledger/internal/driver"
)

type DriverRepository struct {
	db *gorm.DB
}

func NewDriverRepository(db *gorm.DB) driver.RepositoryAPI {
	return &DriverRepository{db: db}
}

func (r *DriverRepository) GetByID(ctx context.Context, id int64) (*driverDatamodel.Driver, error) {
	var d driverDatamodel.Driver
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DriverRepository) GetByLicense(ctx context.Context, license string) (*driverDatamodel.Driver, error) {
	var d driverDatamodel.Driver
	err := r.db.WithContext(ctx).Where("license_number = ?", license).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DriverRepository) Create(ctx context.Context, d *driverDatamodel.Driver) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DriverRepository) LockForUpdate(ctx context.Context, id int64) (*driverDatamodel.Driver, error) {
	var d driverDatamodel.Driver
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DriverRepository) Search(ctx context.Context, query string, limit, offset int) ([]*driverDatamodel.Driver, int64, error) {
	q := r.db.WithContext(ctx).Model(&driverDatamodel.Driver{})
	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(license_number) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var drivers []*driverDatamodel.Driver
	err := q.Order("name ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&drivers).Error
	return drivers, total, err
}
