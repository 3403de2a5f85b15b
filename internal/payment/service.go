package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/pagination"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/validation"
	paymentDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/payment"
	"github.com/frahmantamala/fleet-ledger/internal/core/dberr"
)

type RepositoryAPI interface {
	Create(ctx context.Context, p *paymentDatamodel.Payment) error
	GetByID(ctx context.Context, id int64) (*paymentDatamodel.Payment, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*paymentDatamodel.Payment, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	Save(ctx context.Context, p *paymentDatamodel.Payment) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*paymentDatamodel.Payment, int64, error)
}

type Options struct {
	ReferencePrefix      string
	ReferenceMaxAttempts int
}

type Service struct {
	repo   RepositoryAPI
	clock  clock.Clock
	opts   Options
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, clk clock.Clock, opts Options, logger *slog.Logger) *Service {
	if opts.ReferenceMaxAttempts <= 0 {
		opts.ReferenceMaxAttempts = 10
	}
	return &Service{
		repo:   repo,
		clock:  clk,
		opts:   opts,
		logger: logger,
	}
}

func (s *Service) WithRepository(repo RepositoryAPI) *Service {
	return &Service{repo: repo, clock: s.clock, opts: s.opts, logger: s.logger}
}

// Create stores a completed payment with a fresh reference number. It never
// allocates; that is the reconciliation engine's job.
func (s *Service) Create(ctx context.Context, driverID int64, in *CreateInput) (*Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	paymentDate := s.clock.Now()
	if in.PaymentDate != nil {
		paymentDate = *in.PaymentDate
	}

	p := &Payment{
		DriverID:          driverID,
		Amount:            in.Amount,
		Channel:           in.Channel,
		CoversDays:        in.CoversDays,
		Remarks:           in.Remarks,
		Status:            paymentDatamodel.StatusCompleted,
		PaymentDate:       paymentDate,
		RecordedBy:        in.RecordedBy,
		ReceiptStatus:     paymentDatamodel.ReceiptPending,
		UnallocatedAmount: decimal.Zero,
	}

	var lastErr error
	for attempt := 0; attempt < s.opts.ReferenceMaxAttempts; attempt++ {
		ref, err := GenerateUniqueReference(ctx, s.opts.ReferencePrefix, s.opts.ReferenceMaxAttempts, s.repo.ReferenceExists)
		if err != nil {
			return nil, err
		}
		p.ReferenceNumber = ref

		row, err := ToDataModel(p)
		if err != nil {
			return nil, err
		}
		err = s.repo.Create(ctx, row)
		if err == nil {
			created, err := FromDataModel(row)
			if err != nil {
				return nil, err
			}
			s.logger.Info("payment created",
				"payment_id", created.ID,
				"reference", created.ReferenceNumber,
				"driver_id", driverID,
				"amount", created.Amount.String(),
				"channel", created.Channel)
			return created, nil
		}
		if !dberr.IsUniqueViolation(err) {
			s.logger.Error("failed to create payment record", "error", err, "driver_id", driverID)
			return nil, fmt.Errorf("create payment: %w", err)
		}
		// reference taken between the check and the insert
		lastErr = err
		s.logger.Warn("payment reference collided, regenerating", "reference", ref, "attempt", attempt+1)
	}

	return nil, internal.NewConflictError("could not store payment with a unique reference", internal.ErrCodeReferenceExhausted).WithCause(lastErr)
}

func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	if row == nil {
		return nil, internal.ErrPaymentNotFound()
	}
	return FromDataModel(row)
}

func (s *Service) GetForUpdate(ctx context.Context, id int64) (*Payment, error) {
	row, err := s.repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock payment %d: %w", id, err)
	}
	if row == nil {
		return nil, internal.ErrPaymentNotFound()
	}
	return FromDataModel(row)
}

// Update edits amount, channel, remarks and status only. Allocation is left
// exactly as it was.
func (s *Service) Update(ctx context.Context, id int64, dto UpdatePaymentDTO) (*Payment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	p, err := s.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Amount != nil {
		p.Amount = *dto.Amount
	}
	if dto.Channel != nil {
		p.Channel = NormalizeChannel(*dto.Channel)
	}
	if dto.Remarks != nil {
		p.Remarks = strings.TrimSpace(*dto.Remarks)
	}
	if dto.Status != nil {
		p.Status = strings.ToLower(*dto.Status)
	}

	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("payment updated", "payment_id", p.ID, "reference", p.ReferenceNumber)
	return p, nil
}

// UpdateReceiptStatus moves the receipt workflow forward; it never goes back
// to pending once a receipt exists.
func (s *Service) UpdateReceiptStatus(ctx context.Context, id int64, status string) (*Payment, error) {
	status = NormalizeReceiptStatus(status)
	v := validation.NewValidator()
	v.Field("receipt_status", status).Required().OneOf(internal.ErrCodeInvalidStatus, ReceiptStatuses...)
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}

	p, err := s.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if receiptRank(status) < receiptRank(p.ReceiptStatus) {
		return nil, internal.NewInvalidStateError(
			fmt.Sprintf("receipt status cannot move from %s to %s", p.ReceiptStatus, status),
			internal.ErrCodeInvalidStatus,
		)
	}

	p.ReceiptStatus = status
	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func receiptRank(status string) int {
	for i, s := range ReceiptStatuses {
		if s == status {
			return i
		}
	}
	return -1
}

func (s *Service) Save(ctx context.Context, p *Payment) error {
	row, err := ToDataModel(p)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, row); err != nil {
		return fmt.Errorf("save payment %d: %w", p.ID, err)
	}
	p.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, page, limit int) (*Page, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	page, limit = pagination.Normalize(page, limit)

	rows, total, err := s.repo.List(ctx, filter, limit, pagination.Offset(page, limit))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	items := make([]*Payment, 0, len(rows))
	for _, row := range rows {
		p, err := FromDataModel(row)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return &Page{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pagination.TotalPages(total, limit),
	}, nil
}

func (s *Service) ListByDriver(ctx context.Context, driverID int64, page, limit int) (*Page, error) {
	return s.List(ctx, ListFilter{DriverID: driverID}, page, limit)
}

func (s *Service) ListPendingReceipts(ctx context.Context, page, limit int) (*Page, error) {
	return s.List(ctx, ListFilter{CompletedOnly: true, PendingReceiptOnly: true}, page, limit)
}
