package obligation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	obligationDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/obligation"
)

// Obligation is one driver's expected earning for one calendar day.
type Obligation struct {
	ID             int64
	DriverID       int64
	EarningDate    time.Time
	ExpectedAmount decimal.Decimal
	PaidAmount     decimal.Decimal
	IsPaid         bool
	PaymentID      *int64
	PaidAt         *time.Time
	DaysOverdue    int
	Notes          string
	LicenseNumber  string
	PromiseToPay   bool
	PromiseDate    *time.Time
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func New(driverID int64, date time.Time, expected decimal.Decimal, createdBy string) *Obligation {
	return &Obligation{
		DriverID:       driverID,
		EarningDate:    clock.DateOf(date),
		ExpectedAmount: expected,
		PaidAmount:     decimal.Zero,
		CreatedBy:      createdBy,
	}
}

// RemainingAmount is never negative; overpayment is tolerated but not carried.
func (o *Obligation) RemainingAmount() decimal.Decimal {
	remaining := o.ExpectedAmount.Sub(o.PaidAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// RecomputeOverdue must run before every save.
func (o *Obligation) RecomputeOverdue(today time.Time) {
	if o.IsPaid {
		o.DaysOverdue = 0
		return
	}
	days := clock.DaysBetween(o.EarningDate, today)
	if days < 0 {
		days = 0
	}
	o.DaysOverdue = days
}

func (o *Obligation) IsFullyCovered() bool {
	return o.PaidAmount.GreaterThanOrEqual(o.ExpectedAmount)
}

// Settle marks the obligation paid by paymentID.
func (o *Obligation) Settle(paymentID int64, at time.Time) {
	pid := paymentID
	paidAt := at
	o.IsPaid = true
	o.PaymentID = &pid
	o.PaidAt = &paidAt
	o.DaysOverdue = 0
}

func (o *Obligation) Unsettle() {
	o.IsPaid = false
	o.PaymentID = nil
	o.PaidAt = nil
}

func (o *Obligation) SettledBy(paymentID int64) bool {
	return o.PaymentID != nil && *o.PaymentID == paymentID
}

func (o *Obligation) EnsureEditable() error {
	if o.IsPaid {
		return internal.ErrObligationSettled()
	}
	return nil
}

func (o *Obligation) EnsureDeletable() error {
	if o.IsPaid {
		return internal.ErrObligationSettled()
	}
	if o.PaymentID != nil {
		return internal.ErrObligationLinked()
	}
	return nil
}

func (o *Obligation) ToResponse() ObligationResponse {
	resp := ObligationResponse{
		ID:              o.ID,
		DriverID:        o.DriverID,
		EarningDate:     clock.FormatDate(o.EarningDate),
		ExpectedAmount:  o.ExpectedAmount,
		PaidAmount:      o.PaidAmount,
		RemainingAmount: o.RemainingAmount(),
		IsPaid:          o.IsPaid,
		PaymentID:       o.PaymentID,
		PaidAt:          o.PaidAt,
		DaysOverdue:     o.DaysOverdue,
		Notes:           o.Notes,
		LicenseNumber:   o.LicenseNumber,
		PromiseToPay:    o.PromiseToPay,
		CreatedBy:       o.CreatedBy,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.PromiseDate != nil {
		d := clock.FormatDate(*o.PromiseDate)
		resp.PromiseDate = &d
	}
	return resp
}

func ToDataModel(o *Obligation) *obligationDatamodel.DebtRecord {
	return &obligationDatamodel.DebtRecord{
		ID:             o.ID,
		DriverID:       o.DriverID,
		EarningDate:    clock.DateOf(o.EarningDate),
		ExpectedAmount: o.ExpectedAmount,
		PaidAmount:     o.PaidAmount,
		IsPaid:         o.IsPaid,
		PaymentID:      o.PaymentID,
		PaidAt:         o.PaidAt,
		DaysOverdue:    o.DaysOverdue,
		Notes:          o.Notes,
		LicenseNumber:  o.LicenseNumber,
		PromiseToPay:   o.PromiseToPay,
		PromiseDate:    o.PromiseDate,
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func FromDataModel(r *obligationDatamodel.DebtRecord) *Obligation {
	return &Obligation{
		ID:             r.ID,
		DriverID:       r.DriverID,
		EarningDate:    clock.DateOf(r.EarningDate),
		ExpectedAmount: r.ExpectedAmount,
		PaidAmount:     r.PaidAmount,
		IsPaid:         r.IsPaid,
		PaymentID:      r.PaymentID,
		PaidAt:         r.PaidAt,
		DaysOverdue:    r.DaysOverdue,
		Notes:          r.Notes,
		LicenseNumber:  r.LicenseNumber,
		PromiseToPay:   r.PromiseToPay,
		PromiseDate:    r.PromiseDate,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func FromDataModels(rows []*obligationDatamodel.DebtRecord) []*Obligation {
	out := make([]*Obligation, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromDataModel(r))
	}
	return out
}
