package reconciliation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	driverDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/driver"
	"github.com/frahmantamala/fleet-ledger/internal/core/dberr"
	"github.com/frahmantamala/fleet-ledger/internal/core/events"
	"github.com/frahmantamala/fleet-ledger/internal/driver"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
	"github.com/frahmantamala/fleet-ledger/internal/payment"
)

// Repositories are the stores a single unit of work operates on. Every one of
// them shares the same transaction.
type Repositories struct {
	Drivers     driver.RepositoryAPI
	Obligations obligation.RepositoryAPI
	Payments    payment.RepositoryAPI
	Allocations AllocationRepositoryAPI
}

type UnitOfWork interface {
	// Do commits when fn returns nil and rolls back otherwise.
	Do(ctx context.Context, fn func(repos Repositories) error) error
}

type Options struct {
	DefaultExpectedAmount decimal.Decimal
}

// Service is the ledger facade. Every mutation runs in one unit of work that
// locks the driver first, and ledger events go out only after commit.
type Service struct {
	uow         UnitOfWork
	drivers     *driver.Service
	obligations *obligation.Service
	payments    *payment.Service
	engine      *Engine
	publisher   events.Publisher
	opts        Options
	logger      *slog.Logger
}

func NewService(
	uow UnitOfWork,
	drivers *driver.Service,
	obligations *obligation.Service,
	payments *payment.Service,
	publisher events.Publisher,
	clk clock.Clock,
	opts Options,
	logger *slog.Logger,
) *Service {
	return &Service{
		uow:         uow,
		drivers:     drivers,
		obligations: obligations,
		payments:    payments,
		engine:      NewEngine(clk),
		publisher:   publisher,
		opts:        opts,
		logger:      logger,
	}
}

// scope bundles the transaction-bound services for one unit of work.
type scope struct {
	repos       Repositories
	obligations *obligation.Service
	payments    *payment.Service
}

func (s *Service) inTx(ctx context.Context, fn func(sc *scope) error) error {
	err := s.uow.Do(ctx, func(repos Repositories) error {
		return fn(&scope{
			repos:       repos,
			obligations: s.obligations.WithRepository(repos.Obligations),
			payments:    s.payments.WithRepository(repos.Payments),
		})
	})
	return s.translate(err)
}

func (s *Service) translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	if dberr.IsLockConflict(err) {
		s.logger.Warn("ledger lock conflict", "error", err)
		return internal.ErrConcurrencyConflict(err)
	}
	return err
}

func (sc *scope) lockDriver(ctx context.Context, driverID int64) (*driverDatamodel.Driver, error) {
	row, err := sc.repos.Drivers.LockForUpdate(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("lock driver %d: %w", driverID, err)
	}
	if row == nil {
		return nil, internal.ErrDriverNotFound()
	}
	return row, nil
}

func (s *Service) publish(ctx context.Context, eventType, entityType string, entityID, driverID int64, actorID string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	evt := events.NewLedgerEvent(eventType, entityType, entityID, driverID, actorID, data)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish ledger event", "event_type", eventType, "error", err)
	}
}

func (s *Service) CreateObligations(ctx context.Context, actorID string, driverID int64, dto obligation.CreateObligationsDTO) ([]*obligation.Obligation, error) {
	req, err := dto.Normalize()
	if err != nil {
		return nil, err
	}

	var items []*obligation.Obligation
	err = s.inTx(ctx, func(sc *scope) error {
		drv, err := sc.lockDriver(ctx, driverID)
		if err != nil {
			return err
		}
		items, err = sc.obligations.BulkCreate(ctx, actorID, driverID, req, drv.LicenseNumber)
		return err
	})
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(items))
	for _, o := range items {
		dates = append(dates, clock.FormatDate(o.EarningDate))
	}
	s.publish(ctx, events.EventTypeObligationsCreated, events.EntityDriver, driverID, driverID, actorID, map[string]interface{}{
		"dates": dates,
		"count": len(items),
	})
	return items, nil
}

// allocate ensures a record exists for each day, locks them and applies p.
// It fails with NoOutstandingDebt when every requested day is already paid.
func (s *Service) allocate(ctx context.Context, sc *scope, actorID string, drv *driverDatamodel.Driver, p *payment.Payment) (*AllocationResult, error) {
	for _, day := range p.CoversDays {
		if _, _, err := sc.obligations.CreateOrGet(ctx, actorID, drv.ID, day, s.opts.DefaultExpectedAmount, drv.LicenseNumber); err != nil {
			return nil, err
		}
	}

	rows, err := sc.obligations.LockForDates(ctx, drv.ID, p.CoversDays)
	if err != nil {
		return nil, err
	}

	result := s.engine.Allocate(p, rows)
	if result.UnpaidCount == 0 {
		return nil, internal.ErrNoOutstandingDebt()
	}

	if err := sc.obligations.SaveAll(ctx, result.Touched); err != nil {
		return nil, err
	}
	if len(result.Lines) > 0 {
		if err := sc.repos.Allocations.Create(ctx, allocationsToDataModels(result.Lines)); err != nil {
			return nil, fmt.Errorf("store allocations for payment %d: %w", p.ID, err)
		}
	}

	p.UnallocatedAmount = result.Unallocated
	if err := sc.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	return result, nil
}

// reverse unwinds every allocation of p and removes its ledger lines.
func (s *Service) reverse(ctx context.Context, sc *scope, p *payment.Payment) ([]*obligation.Obligation, error) {
	rows, err := sc.repos.Allocations.ListByPayment(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list allocations for payment %d: %w", p.ID, err)
	}
	lines := allocationsFromDataModels(rows)

	settled, err := sc.obligations.SettledByPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(lines)+len(settled))
	seen := make(map[int64]bool, len(lines)+len(settled))
	for _, l := range lines {
		if !seen[l.ObligationID] {
			seen[l.ObligationID] = true
			ids = append(ids, l.ObligationID)
		}
	}
	for _, o := range settled {
		if !seen[o.ID] {
			seen[o.ID] = true
			ids = append(ids, o.ID)
		}
	}

	locked, err := sc.obligations.LockByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	touched := s.engine.Reverse(p, lines, locked)
	if err := sc.obligations.SaveAll(ctx, touched); err != nil {
		return nil, err
	}
	if err := sc.repos.Allocations.DeleteByPayment(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("delete allocations for payment %d: %w", p.ID, err)
	}
	return touched, nil
}

// RecordPayment stores the payment and allocates it against its covered days
// in one transaction. Nothing is stored when there is no outstanding debt.
func (s *Service) RecordPayment(ctx context.Context, actorID string, driverID int64, dto payment.RecordPaymentDTO) (*payment.RecordPaymentResult, error) {
	in, err := dto.ToInput(actorID)
	if err != nil {
		return nil, err
	}

	var out *payment.RecordPaymentResult
	err = s.inTx(ctx, func(sc *scope) error {
		drv, err := sc.lockDriver(ctx, driverID)
		if err != nil {
			return err
		}

		p, err := sc.payments.Create(ctx, driverID, in)
		if err != nil {
			return err
		}

		result, err := s.allocate(ctx, sc, actorID, drv, p)
		if err != nil {
			return err
		}

		out = &payment.RecordPaymentResult{
			Payment:           p,
			PaidDays:          result.PaidDays,
			TotalApplied:      result.TotalApplied,
			UnallocatedAmount: result.Unallocated,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment allocated",
		"payment_id", out.Payment.ID,
		"reference", out.Payment.ReferenceNumber,
		"driver_id", driverID,
		"paid_days", len(out.PaidDays),
		"total_applied", out.TotalApplied.String(),
		"unallocated", out.UnallocatedAmount.String())

	s.publish(ctx, events.EventTypePaymentRecorded, events.EntityPayment, out.Payment.ID, driverID, actorID, map[string]interface{}{
		"reference_number": out.Payment.ReferenceNumber,
		"amount":           out.Payment.Amount.String(),
		"total_applied":    out.TotalApplied.String(),
		"unallocated":      out.UnallocatedAmount.String(),
		"paid_days":        len(out.PaidDays),
	})
	return out, nil
}

// RecordStandalonePayment stores money received without tying it to any day.
func (s *Service) RecordStandalonePayment(ctx context.Context, actorID string, driverID int64, dto payment.StandalonePaymentDTO) (*payment.Payment, error) {
	in, err := dto.ToInput(actorID)
	if err != nil {
		return nil, err
	}

	var p *payment.Payment
	err = s.inTx(ctx, func(sc *scope) error {
		if _, err := sc.lockDriver(ctx, driverID); err != nil {
			return err
		}
		created, err := sc.payments.Create(ctx, driverID, in)
		if err != nil {
			return err
		}
		created.UnallocatedAmount = created.Amount
		if err := sc.payments.Save(ctx, created); err != nil {
			return err
		}
		p = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTypePaymentRecorded, events.EntityPayment, p.ID, driverID, actorID, map[string]interface{}{
		"reference_number": p.ReferenceNumber,
		"amount":           p.Amount.String(),
		"standalone":       true,
	})
	return p, nil
}

func (s *Service) UpdateObligation(ctx context.Context, actorID string, id int64, dto obligation.UpdateObligationDTO) (*obligation.Obligation, error) {
	var o *obligation.Obligation
	err := s.inTx(ctx, func(sc *scope) error {
		var err error
		o, err = sc.obligations.Update(ctx, id, dto)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTypeObligationUpdated, events.EntityObligation, o.ID, o.DriverID, actorID, map[string]interface{}{
		"earning_date":    clock.FormatDate(o.EarningDate),
		"expected_amount": o.ExpectedAmount.String(),
	})
	return o, nil
}

func (s *Service) DeleteObligation(ctx context.Context, actorID string, id int64) error {
	var o *obligation.Obligation
	err := s.inTx(ctx, func(sc *scope) error {
		var err error
		o, err = sc.obligations.Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.EventTypeObligationDeleted, events.EntityObligation, o.ID, o.DriverID, actorID, map[string]interface{}{
		"earning_date": clock.FormatDate(o.EarningDate),
	})
	return nil
}

// MarkObligationPaid links an existing payment to one record outside the
// bulk allocation flow.
func (s *Service) MarkObligationPaid(ctx context.Context, actorID string, id int64, dto obligation.MarkPaidDTO) (*obligation.Obligation, error) {
	if dto.PaymentID <= 0 {
		return nil, internal.NewValidationFieldError("payment_id", "payment_id is required", internal.ErrCodeValidationFailed)
	}

	var o *obligation.Obligation
	err := s.inTx(ctx, func(sc *scope) error {
		current, err := sc.obligations.Get(ctx, id)
		if err != nil {
			return err
		}
		if _, err := sc.lockDriver(ctx, current.DriverID); err != nil {
			return err
		}

		o, err = sc.obligations.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p, err := sc.payments.GetForUpdate(ctx, dto.PaymentID)
		if err != nil {
			return err
		}

		line, err := s.engine.MarkAsPaid(o, p, dto.Amount)
		if err != nil {
			return err
		}
		if err := sc.obligations.Save(ctx, o); err != nil {
			return err
		}
		if err := sc.repos.Allocations.Create(ctx, allocationsToDataModels([]*Allocation{line})); err != nil {
			return fmt.Errorf("store allocation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTypeObligationMarkedPaid, events.EntityObligation, o.ID, o.DriverID, actorID, map[string]interface{}{
		"payment_id":  dto.PaymentID,
		"paid_amount": o.PaidAmount.String(),
	})
	return o, nil
}

// UpdatePayment edits payment fields. Existing allocations are left alone;
// ReallocatePayment applies a changed amount.
func (s *Service) UpdatePayment(ctx context.Context, actorID string, id int64, dto payment.UpdatePaymentDTO) (*payment.Payment, error) {
	var p *payment.Payment
	err := s.inTx(ctx, func(sc *scope) error {
		var err error
		p, err = sc.payments.Update(ctx, id, dto)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTypePaymentUpdated, events.EntityPayment, p.ID, p.DriverID, actorID, map[string]interface{}{
		"amount":  p.Amount.String(),
		"channel": p.Channel,
		"status":  p.Status,
	})
	return p, nil
}

func (s *Service) UpdateReceiptStatus(ctx context.Context, actorID string, id int64, status string) (*payment.Payment, error) {
	var p *payment.Payment
	err := s.inTx(ctx, func(sc *scope) error {
		var err error
		p, err = sc.payments.UpdateReceiptStatus(ctx, id, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTypePaymentUpdated, events.EntityPayment, p.ID, p.DriverID, actorID, map[string]interface{}{
		"receipt_status": p.ReceiptStatus,
	})
	return p, nil
}

// DeletePayment reverses every allocation the payment made, then removes it.
func (s *Service) DeletePayment(ctx context.Context, actorID string, id int64) error {
	var (
		p        *payment.Payment
		restored int
	)
	err := s.inTx(ctx, func(sc *scope) error {
		current, err := sc.payments.Get(ctx, id)
		if err != nil {
			return err
		}
		if _, err := sc.lockDriver(ctx, current.DriverID); err != nil {
			return err
		}
		p, err = sc.payments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		touched, err := s.reverse(ctx, sc, p)
		if err != nil {
			return err
		}
		restored = len(touched)
		return sc.payments.Delete(ctx, p.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("payment deleted and reversed", "payment_id", p.ID, "driver_id", p.DriverID, "restored", restored)
	s.publish(ctx, events.EventTypePaymentDeleted, events.EntityPayment, p.ID, p.DriverID, actorID, map[string]interface{}{
		"reference_number": p.ReferenceNumber,
		"amount":           p.Amount.String(),
		"restored":         restored,
	})
	return nil
}

// ReallocatePayment reverses the payment's allocation and applies its current
// amount to its covered days again.
func (s *Service) ReallocatePayment(ctx context.Context, actorID string, id int64) (*payment.RecordPaymentResult, error) {
	var out *payment.RecordPaymentResult
	err := s.inTx(ctx, func(sc *scope) error {
		current, err := sc.payments.Get(ctx, id)
		if err != nil {
			return err
		}
		drv, err := sc.lockDriver(ctx, current.DriverID)
		if err != nil {
			return err
		}
		p, err := sc.payments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.IsCompleted() {
			return internal.NewInvalidStateError("only completed payments can be reallocated", internal.ErrCodePaymentNotActive)
		}
		if p.IsStandalone() {
			return internal.NewValidationError("payment does not cover any days", internal.ErrCodeValidationFailed)
		}

		if _, err := s.reverse(ctx, sc, p); err != nil {
			return err
		}
		result, err := s.allocate(ctx, sc, actorID, drv, p)
		if err != nil {
			return err
		}

		out = &payment.RecordPaymentResult{
			Payment:           p,
			PaidDays:          result.PaidDays,
			TotalApplied:      result.TotalApplied,
			UnallocatedAmount: result.Unallocated,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTypePaymentReallocated, events.EntityPayment, out.Payment.ID, out.Payment.DriverID, actorID, map[string]interface{}{
		"amount":        out.Payment.Amount.String(),
		"total_applied": out.TotalApplied.String(),
		"unallocated":   out.UnallocatedAmount.String(),
	})
	return out, nil
}

func (s *Service) GetPayment(ctx context.Context, id int64) (*payment.Payment, error) {
	return s.payments.Get(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, filter payment.ListFilter, page, limit int) (*payment.Page, error) {
	return s.payments.List(ctx, filter, page, limit)
}

func (s *Service) GetObligation(ctx context.Context, id int64) (*obligation.Obligation, error) {
	return s.obligations.Get(ctx, id)
}

func (s *Service) ListObligations(ctx context.Context, driverID int64, filter obligation.ListFilter) ([]*obligation.Obligation, error) {
	if _, err := s.drivers.Get(ctx, driverID); err != nil {
		return nil, err
	}
	return s.obligations.ListByDriver(ctx, driverID, filter)
}
