package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/pagination"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/validation"
	"github.com/frahmantamala/fleet-ledger/internal/driver"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
)

// RepositoryAPI holds the aggregate queries. Implementations push grouping,
// ordering and paging into SQL.
type RepositoryAPI interface {
	ListDriversWithDebt(ctx context.Context, filter DriverListFilter, today time.Time, limit, offset int) ([]*DriverDebtRow, error)
	CountDriversWithDebt(ctx context.Context, filter DriverListFilter) (int64, error)
	CompletedPaymentsTotal(ctx context.Context, driverID int64, r Range) (decimal.Decimal, error)
	PaymentsByChannel(ctx context.Context, r Range) ([]*ChannelRow, error)
	ReceiptCounts(ctx context.Context, r Range) (*ReceiptCounts, error)
	DebtTotals(ctx context.Context, r Range, today time.Time) (*DebtTotals, error)
	TopPayers(ctx context.Context, r Range, limit int) ([]*TopPayer, error)
}

type DriverReader interface {
	Get(ctx context.Context, id int64) (*driver.Driver, error)
}

type ObligationReader interface {
	ListByDriver(ctx context.Context, driverID int64, filter obligation.ListFilter) ([]*obligation.Obligation, error)
}

const (
	DefaultTopPayers = 10
	MaxTopPayers     = 100
)

type Service struct {
	repo        RepositoryAPI
	drivers     DriverReader
	obligations ObligationReader
	clock       clock.Clock
	logger      *slog.Logger
}

func NewService(repo RepositoryAPI, drivers DriverReader, obligations ObligationReader, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		drivers:     drivers,
		obligations: obligations,
		clock:       clk,
		logger:      logger,
	}
}

func validateRange(r Range) error {
	v := validation.NewValidator()
	v.Field("range", [2]time.Time{r.From, r.To}).DateRange()
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func (s *Service) DriverSummary(ctx context.Context, driverID int64) (*DriverSummary, error) {
	return s.DriverSummaryInRange(ctx, driverID, Range{})
}

// DriverSummaryInRange restricts debt figures to records earned in r. When r
// has any bound, total_paid is the sum of completed payments made in r instead
// of the paid records' amounts.
func (s *Service) DriverSummaryInRange(ctx context.Context, driverID int64, r Range) (*DriverSummary, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}

	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}

	records, err := s.obligations.ListByDriver(ctx, driverID, obligation.ListFilter{From: r.From, To: r.To})
	if err != nil {
		return nil, err
	}

	today := clock.Today(s.clock)
	sum := &DriverSummary{
		DriverID:   d.ID,
		DriverName: d.Name,
		TotalDebt:  decimal.Zero,
		TotalPaid:  decimal.Zero,
	}
	for _, o := range records {
		if !o.IsPaid {
			sum.TotalDebt = sum.TotalDebt.Add(o.RemainingAmount())
			sum.UnpaidDays++
			if clock.DaysBetween(o.EarningDate, today) > 0 {
				sum.OverdueDays++
			}
			continue
		}
		sum.TotalPaid = sum.TotalPaid.Add(o.PaidAmount)
		if o.PaidAt != nil && (sum.LastPaymentDate == nil || o.PaidAt.After(*sum.LastPaymentDate)) {
			at := *o.PaidAt
			sum.LastPaymentDate = &at
		}
	}

	if !r.From.IsZero() || !r.To.IsZero() {
		total, err := s.repo.CompletedPaymentsTotal(ctx, driverID, r)
		if err != nil {
			return nil, fmt.Errorf("sum payments for driver %d: %w", driverID, err)
		}
		sum.TotalPaid = total
		if !r.From.IsZero() {
			from := r.From
			sum.From = &from
		}
		if !r.To.IsZero() {
			to := r.To
			sum.To = &to
		}
	}
	return sum, nil
}

// ListDriversWithDebtStatus pages through drivers, indebted first, largest
// debt first, then by name.
func (s *Service) ListDriversWithDebtStatus(ctx context.Context, filter DriverListFilter, page, limit int) (*DriverPage, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	page, limit = pagination.Normalize(page, limit)

	total, err := s.repo.CountDriversWithDebt(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count drivers: %w", err)
	}

	rows, err := s.repo.ListDriversWithDebt(ctx, filter, clock.Today(s.clock), limit, pagination.Offset(page, limit))
	if err != nil {
		return nil, fmt.Errorf("list drivers with debt: %w", err)
	}
	for _, row := range rows {
		row.HasDebt = row.TotalDebt.IsPositive()
	}

	return &DriverPage{
		Items:      rows,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pagination.TotalPages(total, limit),
	}, nil
}

func (s *Service) PaymentSummary(ctx context.Context, r Range) (*PaymentSummary, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}

	channels, err := s.repo.PaymentsByChannel(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("payments by channel: %w", err)
	}
	receipts, err := s.repo.ReceiptCounts(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("receipt counts: %w", err)
	}
	debts, err := s.repo.DebtTotals(ctx, r, clock.Today(s.clock))
	if err != nil {
		return nil, fmt.Errorf("debt totals: %w", err)
	}

	out := &PaymentSummary{
		TotalPayments:        decimal.Zero,
		AveragePayment:       decimal.Zero,
		ByChannel:            make(map[string]ChannelTotal, len(channels)),
		ReceiptsCount:        receipts.Issued,
		PendingReceiptsCount: receipts.Pending,
		TotalOutstandingDebt: debts.Outstanding,
		OverdueDebt:          debts.Overdue,
		DebtsCount:           debts.Count,
	}
	out.From, out.To = r.strings()

	for _, c := range channels {
		out.ByChannel[c.Channel] = ChannelTotal{Count: c.Count, Total: c.Total}
		out.TotalPayments = out.TotalPayments.Add(c.Total)
		out.PaymentCount += c.Count
	}
	if out.PaymentCount > 0 {
		out.AveragePayment = out.TotalPayments.DivRound(decimal.NewFromInt(out.PaymentCount), 2)
	}
	return out, nil
}

func (s *Service) TopPayers(ctx context.Context, r Range, limit int) ([]*TopPayer, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopPayers
	}
	if limit > MaxTopPayers {
		limit = MaxTopPayers
	}

	payers, err := s.repo.TopPayers(ctx, r, limit)
	if err != nil {
		return nil, fmt.Errorf("top payers: %w", err)
	}
	return payers, nil
}
