package obligation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/validation"
)

type ObligationResponse struct {
	ID              int64           `json:"id"`
	DriverID        int64           `json:"driver_id"`
	EarningDate     string          `json:"earning_date"`
	ExpectedAmount  decimal.Decimal `json:"expected_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	IsPaid          bool            `json:"is_paid"`
	PaymentID       *int64          `json:"payment_id"`
	PaidAt          *time.Time      `json:"paid_at"`
	DaysOverdue     int             `json:"days_overdue"`
	Notes           string          `json:"notes"`
	LicenseNumber   string          `json:"license_number"`
	PromiseToPay    bool            `json:"promise_to_pay"`
	PromiseDate     *string         `json:"promise_date"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type ObligationsResponse struct {
	Obligations []ObligationResponse `json:"obligations"`
}

func ToResponses(items []*Obligation) ObligationsResponse {
	out := make([]ObligationResponse, 0, len(items))
	for _, o := range items {
		out = append(out, o.ToResponse())
	}
	return ObligationsResponse{Obligations: out}
}

type ObligationItemDTO struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateObligationsDTO accepts either explicit items or a list of dates
// sharing one amount.
type CreateObligationsDTO struct {
	Items        []ObligationItemDTO `json:"items,omitempty"`
	Dates        []string            `json:"dates,omitempty"`
	Amount       *decimal.Decimal    `json:"amount,omitempty"`
	Notes        string              `json:"notes"`
	PromiseToPay bool                `json:"promise_to_pay"`
	PromiseDate  string              `json:"promise_date,omitempty"`
}

type DateAmount struct {
	Date   time.Time
	Amount decimal.Decimal
}

// CreateRequest is the single internal shape both DTO variants collapse into.
type CreateRequest struct {
	Pairs   []DateAmount
	Notes   string
	Promise *Promise
}

type Promise struct {
	Date *time.Time
}

func (d CreateObligationsDTO) Normalize() (*CreateRequest, error) {
	var pairs []DateAmount

	switch {
	case len(d.Items) > 0 && len(d.Dates) > 0:
		return nil, internal.NewValidationError("provide either items or dates with amount, not both", internal.ErrCodeValidationFailed)
	case len(d.Items) > 0:
		for i, item := range d.Items {
			date, err := parseDateField(fmt.Sprintf("items[%d].date", i), item.Date)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, DateAmount{Date: date, Amount: item.Amount})
		}
	case len(d.Dates) > 0:
		if d.Amount == nil {
			return nil, internal.NewValidationFieldError("amount", "amount is required when dates are given", internal.ErrCodeInvalidAmount)
		}
		for i, raw := range d.Dates {
			date, err := parseDateField(fmt.Sprintf("dates[%d]", i), raw)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, DateAmount{Date: date, Amount: *d.Amount})
		}
	default:
		return nil, internal.NewValidationError("at least one date is required", internal.ErrCodeInvalidDate)
	}

	v := validation.NewValidator()
	for i, p := range pairs {
		v.Field(fmt.Sprintf("amount[%d]", i), p.Amount).NonNegativeAmount().MaxScale(2)
	}
	v.Field("notes", d.Notes).MaxLength(1000)
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}

	req := &CreateRequest{Pairs: dedupeByDate(pairs), Notes: strings.TrimSpace(d.Notes)}
	if d.PromiseToPay {
		req.Promise = &Promise{}
		if d.PromiseDate != "" {
			date, err := parseDateField("promise_date", d.PromiseDate)
			if err != nil {
				return nil, err
			}
			req.Promise.Date = &date
		}
	}
	return req, nil
}

// dedupeByDate keeps the first amount given for a date and orders the result
// oldest first.
func dedupeByDate(pairs []DateAmount) []DateAmount {
	seen := make(map[time.Time]bool, len(pairs))
	out := make([]DateAmount, 0, len(pairs))
	for _, p := range pairs {
		if seen[p.Date] {
			continue
		}
		seen[p.Date] = true
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

type UpdateObligationDTO struct {
	EarningDate    *string          `json:"earning_date,omitempty"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	LicenseNumber  *string          `json:"license_number,omitempty"`
	PromiseToPay   *bool            `json:"promise_to_pay,omitempty"`
	// PromiseDate set to "" clears the promise date.
	PromiseDate *string `json:"promise_date,omitempty"`
}

type MarkPaidDTO struct {
	PaymentID int64            `json:"payment_id"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

const (
	DirectionAsc  = "asc"
	DirectionDesc = "desc"
)

type ListFilter struct {
	UnpaidOnly bool
	From       time.Time
	To         time.Time
	Month      int
	Year       int
	Direction  string
}

func (f *ListFilter) Validate() error {
	if f.Direction == "" {
		f.Direction = DirectionAsc
	}
	v := validation.NewValidator()
	v.Field("direction", strings.ToLower(f.Direction)).OneOf(internal.ErrCodeValidationFailed, DirectionAsc, DirectionDesc)
	v.Field("range", [2]time.Time{f.From, f.To}).DateRange()
	v.Field("month", int64(f.Month)).Custom(func(value interface{}) *internal.AppError {
		if f.Month < 0 || f.Month > 12 {
			return internal.NewValidationFieldError("month", "month must be between 1 and 12", internal.ErrCodeInvalidDate)
		}
		if f.Month > 0 && f.Year == 0 {
			return internal.NewValidationFieldError("year", "year is required with month", internal.ErrCodeInvalidDate)
		}
		return nil
	})
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	f.Direction = strings.ToLower(f.Direction)
	return nil
}

// Bounds folds month/year and from/to into one inclusive date range.
func (f ListFilter) Bounds() (time.Time, time.Time) {
	from, to := f.From, f.To
	if f.Year > 0 {
		start := time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(f.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
		if f.Month > 0 {
			start = time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
			end = start.AddDate(0, 1, -1)
		}
		if from.IsZero() || start.After(from) {
			from = start
		}
		if to.IsZero() || end.Before(to) {
			to = end
		}
	}
	return from, to
}

func parseDateField(field, raw string) (time.Time, error) {
	t, err := clock.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, internal.NewValidationFieldError(field, field+" must be a date in YYYY-MM-DD format", internal.ErrCodeInvalidDate)
	}
	return t, nil
}

// ParseDate is exposed for callers normalising covers_days input.
func ParseDate(field, raw string) (time.Time, error) {
	return parseDateField(field, raw)
}
