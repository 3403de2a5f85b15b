package reconciliation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/validation"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
	"github.com/frahmantamala/fleet-ledger/internal/payment"
)

// Engine applies and unwinds payments against in-memory debt records. It
// performs no I/O; callers load, lock and persist.
type Engine struct {
	clock clock.Clock
}

func NewEngine(clk clock.Clock) *Engine {
	return &Engine{clock: clk}
}

type AllocationResult struct {
	Lines        []*Allocation
	Touched      []*obligation.Obligation
	PaidDays     []time.Time
	UnpaidCount  int
	TotalApplied decimal.Decimal
	Unallocated  decimal.Decimal
}

// Allocate walks unpaid records oldest first, applying as much of p.Amount to
// each as it still needs. Leftover money is reported, never carried to other days.
func (e *Engine) Allocate(p *payment.Payment, obligations []*obligation.Obligation) *AllocationResult {
	ordered := make([]*obligation.Obligation, len(obligations))
	copy(ordered, obligations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EarningDate.Before(ordered[j].EarningDate)
	})

	now := e.clock.Now()
	remaining := p.Amount
	result := &AllocationResult{
		TotalApplied: decimal.Zero,
	}

	for _, o := range ordered {
		if o.IsPaid {
			continue
		}
		result.UnpaidCount++
		if !remaining.IsPositive() {
			continue
		}

		applied := decimal.Min(remaining, o.RemainingAmount())
		if !applied.IsPositive() {
			continue
		}

		previous := o.PaidAmount
		o.PaidAmount = o.PaidAmount.Add(applied)
		remaining = remaining.Sub(applied)

		settled := o.IsFullyCovered()
		if settled {
			o.Settle(p.ID, now)
			result.PaidDays = append(result.PaidDays, o.EarningDate)
		}

		result.Lines = append(result.Lines, &Allocation{
			PaymentID:          p.ID,
			ObligationID:       o.ID,
			AppliedAmount:      applied,
			PreviousPaidAmount: previous,
			Settled:            settled,
		})
		result.Touched = append(result.Touched, o)
		result.TotalApplied = result.TotalApplied.Add(applied)
	}

	result.Unallocated = remaining
	if result.Unallocated.IsNegative() {
		result.Unallocated = decimal.Zero
	}
	return result
}

// Reverse undoes every line of p against obligations and returns the records it
// changed. Records still pointing at p without a line (manual marks made before
// the ledger existed) are reset to zero.
func (e *Engine) Reverse(p *payment.Payment, lines []*Allocation, obligations []*obligation.Obligation) []*obligation.Obligation {
	byID := make(map[int64]*obligation.Obligation, len(obligations))
	for _, o := range obligations {
		byID[o.ID] = o
	}

	newestFirst := make([]*Allocation, len(lines))
	copy(newestFirst, lines)
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}

	seen := make(map[int64]bool, len(obligations))
	var touched []*obligation.Obligation
	touch := func(o *obligation.Obligation) {
		if !seen[o.ID] {
			seen[o.ID] = true
			touched = append(touched, o)
		}
	}

	for _, line := range newestFirst {
		o, ok := byID[line.ObligationID]
		if !ok {
			continue
		}
		o.PaidAmount = o.PaidAmount.Sub(line.AppliedAmount)
		touch(o)
	}

	for _, o := range touched {
		if o.PaidAmount.IsNegative() {
			o.PaidAmount = decimal.Zero
		}
		switch {
		case !o.IsFullyCovered():
			o.Unsettle()
		case o.SettledBy(p.ID):
			// the payment row is about to go away; never leave a link to it
			o.PaymentID = nil
		}
	}

	for _, o := range obligations {
		if seen[o.ID] || !o.SettledBy(p.ID) {
			continue
		}
		o.PaidAmount = decimal.Zero
		o.Unsettle()
		touch(o)
	}

	today := clock.Today(e.clock)
	for _, o := range touched {
		o.RecomputeOverdue(today)
	}
	return touched
}

// MarkAsPaid settles a single record with an existing payment. amount
// defaults to the record's expected amount.
func (e *Engine) MarkAsPaid(o *obligation.Obligation, p *payment.Payment, amount *decimal.Decimal) (*Allocation, error) {
	if o.IsPaid {
		return nil, internal.ErrObligationSettled()
	}
	if p.DriverID != o.DriverID {
		return nil, internal.NewValidationFieldError("payment_id", "payment belongs to a different driver", internal.ErrCodeDriverMismatch)
	}
	if !p.IsCompleted() {
		return nil, internal.NewInvalidStateError("payment is not completed", internal.ErrCodePaymentNotActive)
	}

	paid := o.ExpectedAmount
	if amount != nil {
		v := validation.NewValidator()
		v.Field("amount", *amount).PositiveAmount().MaxScale(2)
		if appErr := v.Validate(); appErr != nil {
			return nil, appErr
		}
		if amount.LessThan(o.PaidAmount) {
			return nil, internal.NewValidationFieldError("amount",
				"amount cannot be less than the "+o.PaidAmount.StringFixed(2)+" already paid", internal.ErrCodeInvalidAmount)
		}
		paid = *amount
	}

	previous := o.PaidAmount
	o.PaidAmount = paid
	o.Settle(p.ID, e.clock.Now())

	return &Allocation{
		PaymentID:          p.ID,
		ObligationID:       o.ID,
		AppliedAmount:      paid.Sub(previous),
		PreviousPaidAmount: previous,
		Settled:            true,
	}, nil
}
