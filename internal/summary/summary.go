package summary

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
)

// DriverSummary is the derived debt position of one driver.
type DriverSummary struct {
	DriverID        int64
	DriverName      string
	TotalDebt       decimal.Decimal
	UnpaidDays      int
	OverdueDays     int
	TotalPaid       decimal.Decimal
	LastPaymentDate *time.Time
	From            *time.Time
	To              *time.Time
}

type DriverSummaryResponse struct {
	DriverID        int64           `json:"driver_id"`
	DriverName      string          `json:"driver_name"`
	TotalDebt       decimal.Decimal `json:"total_debt"`
	UnpaidDays      int             `json:"unpaid_days"`
	OverdueDays     int             `json:"overdue_days"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	LastPaymentDate *time.Time      `json:"last_payment_date"`
	From            *string         `json:"from,omitempty"`
	To              *string         `json:"to,omitempty"`
}

func (s *DriverSummary) ToResponse() DriverSummaryResponse {
	resp := DriverSummaryResponse{
		DriverID:        s.DriverID,
		DriverName:      s.DriverName,
		TotalDebt:       s.TotalDebt,
		UnpaidDays:      s.UnpaidDays,
		OverdueDays:     s.OverdueDays,
		TotalPaid:       s.TotalPaid,
		LastPaymentDate: s.LastPaymentDate,
	}
	if s.From != nil {
		f := clock.FormatDate(*s.From)
		resp.From = &f
	}
	if s.To != nil {
		t := clock.FormatDate(*s.To)
		resp.To = &t
	}
	return resp
}

// DriverDebtRow is one line of the driver debt listing.
type DriverDebtRow struct {
	DriverID      int64           `db:"driver_id" json:"driver_id"`
	Name          string          `db:"name" json:"name"`
	Phone         string          `db:"phone" json:"phone"`
	LicenseNumber string          `db:"license_number" json:"license_number"`
	TotalDebt     decimal.Decimal `db:"total_debt" json:"total_debt"`
	UnpaidDays    int64           `db:"unpaid_days" json:"unpaid_days"`
	OverdueDays   int64           `db:"overdue_days" json:"overdue_days"`
	HasDebt       bool            `db:"-" json:"has_debt"`
}

type DriverListFilter struct {
	Search        string
	OnlyWithDebts bool
}

type DriverPage struct {
	Items      []*DriverDebtRow `json:"drivers"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
}

type ChannelTotal struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// ChannelRow is the scan target of the per-channel aggregate.
type ChannelRow struct {
	Channel string          `db:"payment_channel"`
	Count   int64           `db:"payment_count"`
	Total   decimal.Decimal `db:"total_amount"`
}

type ReceiptCounts struct {
	Issued  int64 `db:"receipts_count"`
	Pending int64 `db:"pending_receipts_count"`
}

type DebtTotals struct {
	Outstanding decimal.Decimal `db:"total_outstanding_debt"`
	Overdue     decimal.Decimal `db:"overdue_debt"`
	Count       int64           `db:"debts_count"`
}

type PaymentSummary struct {
	From                 *string                 `json:"from,omitempty"`
	To                   *string                 `json:"to,omitempty"`
	TotalPayments        decimal.Decimal         `json:"total_payments"`
	PaymentCount         int64                   `json:"payment_count"`
	AveragePayment       decimal.Decimal         `json:"average_payment"`
	ByChannel            map[string]ChannelTotal `json:"by_channel"`
	ReceiptsCount        int64                   `json:"receipts_count"`
	PendingReceiptsCount int64                   `json:"pending_receipts_count"`
	TotalOutstandingDebt decimal.Decimal         `json:"total_outstanding_debt"`
	OverdueDebt          decimal.Decimal         `json:"overdue_debt"`
	DebtsCount           int64                   `json:"debts_count"`
}

type TopPayer struct {
	DriverID     int64           `db:"driver_id" json:"driver_id"`
	Name         string          `db:"name" json:"name"`
	PaymentCount int64           `db:"payment_count" json:"payment_count"`
	TotalPaid    decimal.Decimal `db:"total_paid" json:"total_paid"`
}

// Range is an inclusive calendar-day window; a zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) strings() (*string, *string) {
	var from, to *string
	if !r.From.IsZero() {
		f := clock.FormatDate(r.From)
		from = &f
	}
	if !r.To.IsZero() {
		t := clock.FormatDate(r.To)
		to = &t
	}
	return from, to
}
