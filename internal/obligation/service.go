package obligation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/validation"
	obligationDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/obligation"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*obligationDatamodel.DebtRecord, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*obligationDatamodel.DebtRecord, error)
	FindByDriverAndDate(ctx context.Context, driverID int64, date time.Time) (*obligationDatamodel.DebtRecord, error)
	// InsertIfAbsent reports false when a row for (driver_id, earning_date)
	// already exists; the existing row is left untouched.
	InsertIfAbsent(ctx context.Context, record *obligationDatamodel.DebtRecord) (bool, error)
	ListForUpdate(ctx context.Context, driverID int64, dates []time.Time) ([]*obligationDatamodel.DebtRecord, error)
	ListByIDsForUpdate(ctx context.Context, ids []int64) ([]*obligationDatamodel.DebtRecord, error)
	ListByPaymentID(ctx context.Context, paymentID int64) ([]*obligationDatamodel.DebtRecord, error)
	ListByDriver(ctx context.Context, driverID int64, filter ListFilter) ([]*obligationDatamodel.DebtRecord, error)
	ListUnpaidAfter(ctx context.Context, afterID int64, limit int) ([]*obligationDatamodel.DebtRecord, error)
	CountAllocations(ctx context.Context, id int64) (int64, error)
	Save(ctx context.Context, record *obligationDatamodel.DebtRecord) error
	UpdateOverdue(ctx context.Context, id int64, daysOverdue int) error
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo   RepositoryAPI
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		clock:  clk,
		logger: logger,
	}
}

// WithRepository returns a copy bound to repo, typically a transaction-scoped one.
func (s *Service) WithRepository(repo RepositoryAPI) *Service {
	return &Service{repo: repo, clock: s.clock, logger: s.logger}
}

func (s *Service) Today() time.Time {
	return clock.Today(s.clock)
}

func (s *Service) Get(ctx context.Context, id int64) (*Obligation, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get debt record %d: %w", id, err)
	}
	if row == nil {
		return nil, internal.ErrObligationNotFound()
	}
	return FromDataModel(row), nil
}

func (s *Service) GetForUpdate(ctx context.Context, id int64) (*Obligation, error) {
	row, err := s.repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock debt record %d: %w", id, err)
	}
	if row == nil {
		return nil, internal.ErrObligationNotFound()
	}
	return FromDataModel(row), nil
}

// CreateOrGet is idempotent on (driverID, date): an existing record is
// returned unchanged, its expected amount is never overwritten.
func (s *Service) CreateOrGet(ctx context.Context, actorID string, driverID int64, date time.Time, expected decimal.Decimal, license string) (*Obligation, bool, error) {
	if appErr := validation.ValidateExpectedAmount(expected); appErr != nil {
		return nil, false, appErr
	}
	date = clock.DateOf(date)

	existing, err := s.repo.FindByDriverAndDate(ctx, driverID, date)
	if err != nil {
		return nil, false, fmt.Errorf("find debt record: %w", err)
	}
	if existing != nil {
		return FromDataModel(existing), false, nil
	}

	o := New(driverID, date, expected, actorID)
	o.LicenseNumber = license
	o.RecomputeOverdue(s.Today())

	row := ToDataModel(o)
	created, err := s.repo.InsertIfAbsent(ctx, row)
	if err != nil {
		return nil, false, fmt.Errorf("insert debt record: %w", err)
	}
	if created {
		return FromDataModel(row), true, nil
	}

	// lost a race with a concurrent creator
	existing, err = s.repo.FindByDriverAndDate(ctx, driverID, date)
	if err != nil {
		return nil, false, fmt.Errorf("reload debt record: %w", err)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("debt record for driver %d on %s vanished after conflict", driverID, clock.FormatDate(date))
	}
	return FromDataModel(existing), false, nil
}

func (s *Service) BulkCreate(ctx context.Context, actorID string, driverID int64, req *CreateRequest, license string) ([]*Obligation, error) {
	out := make([]*Obligation, 0, len(req.Pairs))
	created := 0

	for _, pair := range req.Pairs {
		o, isNew, err := s.CreateOrGet(ctx, actorID, driverID, pair.Date, pair.Amount, license)
		if err != nil {
			return nil, err
		}

		dirty := false
		if isNew && req.Notes != "" {
			o.Notes = req.Notes
			dirty = true
		}
		if req.Promise != nil && !o.IsPaid {
			o.PromiseToPay = true
			o.PromiseDate = req.Promise.Date
			dirty = true
		}
		if dirty {
			if err := s.Save(ctx, o); err != nil {
				return nil, err
			}
		}
		if isNew {
			created++
		}
		out = append(out, o)
	}

	s.logger.Info("debt records ensured",
		"driver_id", driverID,
		"requested", len(req.Pairs),
		"created", created)
	return out, nil
}

// Update applies admin edits. Settled records are immutable.
func (s *Service) Update(ctx context.Context, id int64, dto UpdateObligationDTO) (*Obligation, error) {
	o, err := s.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.EnsureEditable(); err != nil {
		return nil, err
	}

	if dto.EarningDate != nil {
		date, err := parseDateField("earning_date", *dto.EarningDate)
		if err != nil {
			return nil, err
		}
		if !date.Equal(o.EarningDate) {
			clash, err := s.repo.FindByDriverAndDate(ctx, o.DriverID, date)
			if err != nil {
				return nil, fmt.Errorf("check date clash: %w", err)
			}
			if clash != nil {
				return nil, internal.NewConflictError("driver already has a debt record for "+clock.FormatDate(date), internal.ErrCodeDuplicateObligation)
			}
			o.EarningDate = date
		}
	}
	if dto.ExpectedAmount != nil {
		if appErr := validation.ValidateExpectedAmount(*dto.ExpectedAmount); appErr != nil {
			return nil, appErr
		}
		// an unpaid record must keep money outstanding
		if o.PaidAmount.IsPositive() && dto.ExpectedAmount.LessThanOrEqual(o.PaidAmount) {
			return nil, internal.NewValidationFieldError("expected_amount",
				"expected_amount must exceed the "+o.PaidAmount.StringFixed(2)+" already paid", internal.ErrCodeInvalidAmount)
		}
		o.ExpectedAmount = *dto.ExpectedAmount
	}
	if dto.Notes != nil {
		o.Notes = strings.TrimSpace(*dto.Notes)
	}
	if dto.LicenseNumber != nil {
		o.LicenseNumber = strings.TrimSpace(*dto.LicenseNumber)
	}
	if dto.PromiseToPay != nil {
		o.PromiseToPay = *dto.PromiseToPay
		if !o.PromiseToPay {
			o.PromiseDate = nil
		}
	}
	if dto.PromiseDate != nil {
		if *dto.PromiseDate == "" {
			o.PromiseDate = nil
		} else {
			date, err := parseDateField("promise_date", *dto.PromiseDate)
			if err != nil {
				return nil, err
			}
			o.PromiseDate = &date
			o.PromiseToPay = true
		}
	}

	if err := s.Save(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info("debt record updated", "obligation_id", o.ID, "driver_id", o.DriverID)
	return o, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*Obligation, error) {
	o, err := s.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.EnsureDeletable(); err != nil {
		return nil, err
	}

	allocations, err := s.repo.CountAllocations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count allocations: %w", err)
	}
	if allocations > 0 {
		return nil, internal.ErrObligationLinked()
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete debt record %d: %w", id, err)
	}
	s.logger.Info("debt record deleted", "obligation_id", id, "driver_id", o.DriverID)
	return o, nil
}

// Save recomputes the derived overdue counter and persists o.
func (s *Service) Save(ctx context.Context, o *Obligation) error {
	o.RecomputeOverdue(s.Today())
	row := ToDataModel(o)
	if err := s.repo.Save(ctx, row); err != nil {
		return fmt.Errorf("save debt record %d: %w", o.ID, err)
	}
	o.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Service) SaveAll(ctx context.Context, items []*Obligation) error {
	for _, o := range items {
		if err := s.Save(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) LockForDates(ctx context.Context, driverID int64, dates []time.Time) ([]*Obligation, error) {
	rows, err := s.repo.ListForUpdate(ctx, driverID, dates)
	if err != nil {
		return nil, fmt.Errorf("lock debt records: %w", err)
	}
	return FromDataModels(rows), nil
}

func (s *Service) LockByIDs(ctx context.Context, ids []int64) ([]*Obligation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.repo.ListByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock debt records: %w", err)
	}
	return FromDataModels(rows), nil
}

func (s *Service) SettledByPayment(ctx context.Context, paymentID int64) ([]*Obligation, error) {
	rows, err := s.repo.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list debt records for payment %d: %w", paymentID, err)
	}
	return FromDataModels(rows), nil
}

func (s *Service) ListByDriver(ctx context.Context, driverID int64, filter ListFilter) ([]*Obligation, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByDriver(ctx, driverID, filter)
	if err != nil {
		return nil, fmt.Errorf("list debt records: %w", err)
	}
	return FromDataModels(rows), nil
}

// RefreshOverdue walks unpaid records in id order and persists every
// days_overdue value that drifted since the record was last saved.
func (s *Service) RefreshOverdue(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	today := s.Today()
	updated := 0
	var afterID int64

	for {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		rows, err := s.repo.ListUnpaidAfter(ctx, afterID, batchSize)
		if err != nil {
			return updated, fmt.Errorf("list unpaid debt records: %w", err)
		}
		for _, row := range rows {
			o := FromDataModel(row)
			before := o.DaysOverdue
			o.RecomputeOverdue(today)
			if o.DaysOverdue != before {
				if err := s.repo.UpdateOverdue(ctx, o.ID, o.DaysOverdue); err != nil {
					return updated, fmt.Errorf("update overdue for %d: %w", o.ID, err)
				}
				updated++
			}
			afterID = row.ID
		}
		if len(rows) < batchSize {
			break
		}
	}

	s.logger.Info("overdue counters refreshed", "updated", updated, "today", clock.FormatDate(today))
	return updated, nil
}
