package payment

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

type PaymentResponse struct {
	ID                int64           `json:"id"`
	ReferenceNumber   string          `json:"reference_number"`
	DriverID          int64           `json:"driver_id"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentChannel    string          `json:"payment_channel"`
	CoversDays        []string        `json:"covers_days"`
	Remarks           string          `json:"remarks"`
	Status            string          `json:"status"`
	PaymentDate       time.Time       `json:"payment_date"`
	RecordedBy        string          `json:"recorded_by"`
	ReceiptStatus     string          `json:"receipt_status"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RecordPaymentDTO records a payment against specific debt days.
type RecordPaymentDTO struct {
	Amount      decimal.Decimal `json:"amount"`
	Channel     string          `json:"payment_channel"`
	CoversDays  []string        `json:"covers_days"`
	Remarks     string          `json:"remarks"`
	PaymentDate string          `json:"payment_date,omitempty"`
}

// StandalonePaymentDTO records money received without linking it to any day.
type StandalonePaymentDTO struct {
	Amount  decimal.Decimal `json:"amount"`
	Channel string          `json:"payment_channel"`
	Date    string          `json:"date,omitempty"`
	Notes   string          `json:"notes"`
}

type UpdatePaymentDTO struct {
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Channel *string          `json:"payment_channel,omitempty"`
	Remarks *string          `json:"remarks,omitempty"`
	Status  *string          `json:"status,omitempty"`
}

type ReceiptStatusDTO struct {
	Status string `json:"receipt_status"`
}

// CreateInput is the validated form every create path funnels into.
type CreateInput struct {
	Amount      decimal.Decimal
	Channel     string
	CoversDays  []time.Time
	Remarks     string
	PaymentDate *time.Time
	RecordedBy  string
}

func (d RecordPaymentDTO) ToInput(recordedBy string) (*CreateInput, error) {
	days, err := parseDays(d.CoversDays)
	if err != nil {
		return nil, err
	}
	in := &CreateInput{
		Amount:     d.Amount,
		Channel:    NormalizeChannel(d.Channel),
		CoversDays: days,
		Remarks:    strings.TrimSpace(d.Remarks),
		RecordedBy: recordedBy,
	}
	if d.PaymentDate != "" {
		t, err := parsePaymentDate(d.PaymentDate)
		if err != nil {
			return nil, err
		}
		in.PaymentDate = &t
	}

	v := validation.NewValidator()
	v.Field("covers_days", days).Required().ValidDates()
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func (d StandalonePaymentDTO) ToInput(recordedBy string) (*CreateInput, error) {
	in := &CreateInput{
		Amount:     d.Amount,
		Channel:    NormalizeChannel(d.Channel),
		Remarks:    strings.TrimSpace(d.Notes),
		RecordedBy: recordedBy,
	}
	if d.Date != "" {
		t, err := parsePaymentDate(d.Date)
		if err != nil {
			return nil, err
		}
		in.PaymentDate = &t
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *CreateInput) Validate() error {
	v := validation.NewValidator()
	v.Field("amount", in.Amount).PositiveAmount().MaxScale(2)
	v.Field("payment_channel", in.Channel).Required().OneOf(internal.ErrCodeInvalidChannel, Channels...)
	v.Field("remarks", in.Remarks).MaxLength(1000)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func (d UpdatePaymentDTO) Validate() error {
	v := validation.NewValidator()
	if d.Amount != nil {
		v.Field("amount", *d.Amount).PositiveAmount().MaxScale(2)
	}
	if d.Channel != nil {
		v.Field("payment_channel", NormalizeChannel(*d.Channel)).OneOf(internal.ErrCodeInvalidChannel, Channels...)
	}
	if d.Status != nil {
		v.Field("status", strings.ToLower(*d.Status)).OneOf(internal.ErrCodeInvalidStatus, Statuses...)
	}
	if d.Remarks != nil {
		v.Field("remarks", *d.Remarks).MaxLength(1000)
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// parseDays parses, de-duplicates and sorts covered days oldest first.
func parseDays(raw []string) ([]time.Time, error) {
	seen := make(map[time.Time]bool, len(raw))
	days := make([]time.Time, 0, len(raw))
	for i, r := range raw {
		d, err := clock.ParseDate(strings.TrimSpace(r))
		if err != nil {
			return nil, internal.NewValidationFieldError(
				fmt.Sprintf("covers_days[%d]", i),
				fmt.Sprintf("covers_days[%d] must be a date in YYYY-MM-DD format", i),
				internal.ErrCodeInvalidDate,
			)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// parsePaymentDate accepts RFC3339 timestamps or bare dates.
func parsePaymentDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := clock.ParseDate(raw); err == nil {
		return t, nil
	}
	return time.Time{}, internal.NewValidationFieldError("payment_date", "payment_date must be RFC3339 or YYYY-MM-DD", internal.ErrCodeInvalidDate)
}

// RecordPaymentResult is what the caller gets back after allocation.
type RecordPaymentResult struct {
	Payment           *Payment
	PaidDays          []time.Time
	TotalApplied      decimal.Decimal
	UnallocatedAmount decimal.Decimal
}

type RecordPaymentResponse struct {
	Payment           PaymentResponse `json:"payment"`
	PaidDays          []string        `json:"paid_days"`
	TotalApplied      decimal.Decimal `json:"total_applied"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
}

func (r *RecordPaymentResult) ToResponse() RecordPaymentResponse {
	days := make([]string, 0, len(r.PaidDays))
	for _, d := range r.PaidDays {
		days = append(days, clock.FormatDate(d))
	}
	return RecordPaymentResponse{
		Payment:           r.Payment.ToResponse(),
		PaidDays:          days,
		TotalApplied:      r.TotalApplied,
		UnallocatedAmount: r.UnallocatedAmount,
	}
}

type ListFilter struct {
	DriverID           int64
	From               time.Time
	To                 time.Time
	Status             string
	Channel            string
	CompletedOnly      bool
	PendingReceiptOnly bool
}

func (f *ListFilter) Validate() error {
	v := validation.NewValidator()
	if f.Status != "" {
		f.Status = strings.ToLower(f.Status)
		v.Field("status", f.Status).OneOf(internal.ErrCodeInvalidStatus, Statuses...)
	}
	if f.Channel != "" {
		f.Channel = NormalizeChannel(f.Channel)
		v.Field("payment_channel", f.Channel).OneOf(internal.ErrCodeInvalidChannel, Channels...)
	}
	v.Field("range", [2]time.Time{f.From, f.To}).DateRange()
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type Page struct {
	Items      []*Payment
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

type PageResponse struct {
	Payments   []PaymentResponse `json:"payments"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"total_pages"`
}

func (p *Page) ToResponse() PageResponse {
	items := make([]PaymentResponse, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item.ToResponse())
	}
	return PageResponse{
		Payments:   items,
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	}
}
