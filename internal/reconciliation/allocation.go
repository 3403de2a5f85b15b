package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	allocationDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/allocation"
)

// Allocation is one application of a payment to one debt record.
// AppliedAmount may be negative when a manual mark lowered paid_amount.
type Allocation struct {
	ID                 int64
	PaymentID          int64
	ObligationID       int64
	AppliedAmount      decimal.Decimal
	PreviousPaidAmount decimal.Decimal
	Settled            bool
	CreatedAt          time.Time
}

type AllocationRepositoryAPI interface {
	Create(ctx context.Context, rows []*allocationDatamodel.PaymentAllocation) error
	ListByPayment(ctx context.Context, paymentID int64) ([]*allocationDatamodel.PaymentAllocation, error)
	DeleteByPayment(ctx context.Context, paymentID int64) error
}

func AllocationToDataModel(a *Allocation) *allocationDatamodel.PaymentAllocation {
	return &allocationDatamodel.PaymentAllocation{
		ID:                 a.ID,
		PaymentID:          a.PaymentID,
		DebtRecordID:       a.ObligationID,
		AppliedAmount:      a.AppliedAmount,
		PreviousPaidAmount: a.PreviousPaidAmount,
		Settled:            a.Settled,
		CreatedAt:          a.CreatedAt,
	}
}

func AllocationFromDataModel(r *allocationDatamodel.PaymentAllocation) *Allocation {
	return &Allocation{
		ID:                 r.ID,
		PaymentID:          r.PaymentID,
		ObligationID:       r.DebtRecordID,
		AppliedAmount:      r.AppliedAmount,
		PreviousPaidAmount: r.PreviousPaidAmount,
		Settled:            r.Settled,
		CreatedAt:          r.CreatedAt,
	}
}

func allocationsFromDataModels(rows []*allocationDatamodel.PaymentAllocation) []*Allocation {
	out := make([]*Allocation, 0, len(rows))
	for _, r := range rows {
		out = append(out, AllocationFromDataModel(r))
	}
	return out
}

func allocationsToDataModels(lines []*Allocation) []*allocationDatamodel.PaymentAllocation {
	out := make([]*allocationDatamodel.PaymentAllocation, 0, len(lines))
	for _, l := range lines {
		out = append(out, AllocationToDataModel(l))
	}
	return out
}
