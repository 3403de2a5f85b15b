package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/pagination"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/validation"
	driverDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/driver"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*driverDatamodel.Driver, error)
	GetByLicense(ctx context.Context, license string) (*driverDatamodel.Driver, error)
	Create(ctx context.Context, d *driverDatamodel.Driver) error
	// LockForUpdate takes a row lock on the driver for the rest of the
	// surrounding transaction.
	LockForUpdate(ctx context.Context, id int64) (*driverDatamodel.Driver, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*driverDatamodel.Driver, int64, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*Driver, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get driver %d: %w", id, err)
	}
	if row == nil {
		return nil, internal.ErrDriverNotFound()
	}
	return FromDataModel(row), nil
}

// Create registers a driver, returning the existing one when the licence is
// already known.
func (s *Service) Create(ctx context.Context, dto CreateDriverDTO) (*Driver, error) {
	dto.Name = strings.TrimSpace(dto.Name)
	dto.LicenseNumber = strings.TrimSpace(dto.LicenseNumber)

	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MaxLength(150)
	v.Field("phone", dto.Phone).MaxLength(30)
	v.Field("license_number", dto.LicenseNumber).MaxLength(50)
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}

	if dto.LicenseNumber != "" {
		existing, err := s.repo.GetByLicense(ctx, dto.LicenseNumber)
		if err != nil {
			return nil, fmt.Errorf("lookup driver by license: %w", err)
		}
		if existing != nil {
			return FromDataModel(existing), nil
		}
	}

	row := &driverDatamodel.Driver{
		Name:          dto.Name,
		Phone:         dto.Phone,
		LicenseNumber: dto.LicenseNumber,
		IsActive:      true,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create driver", "error", err, "name", dto.Name)
		return nil, fmt.Errorf("create driver: %w", err)
	}

	s.logger.Info("driver created", "driver_id", row.ID, "name", row.Name)
	return FromDataModel(row), nil
}

type SearchResult struct {
	Drivers    []*Driver `json:"drivers"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int64     `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// Search matches name, phone or licence, case-insensitively.
func (s *Service) Search(ctx context.Context, query string, page, limit int) (*SearchResult, error) {
	page, limit = pagination.Normalize(page, limit)
	rows, total, err := s.repo.Search(ctx, strings.TrimSpace(query), limit, pagination.Offset(page, limit))
	if err != nil {
		return nil, fmt.Errorf("search drivers: %w", err)
	}

	drivers := make([]*Driver, 0, len(rows))
	for _, row := range rows {
		drivers = append(drivers, FromDataModel(row))
	}
	return &SearchResult{
		Drivers:    drivers,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pagination.TotalPages(total, limit),
	}, nil
}
