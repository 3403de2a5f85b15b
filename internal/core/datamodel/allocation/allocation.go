package allocation

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAllocation records how much of one payment was applied to one debt
// record, and what the record held before, so a reversal can restore it.
type PaymentAllocation struct {
	ID                 int64           `gorm:"primaryKey"`
	PaymentID          int64           `gorm:"column:payment_id;not null;index"`
	DebtRecordID       int64           `gorm:"column:debt_record_id;not null;index"`
	AppliedAmount      decimal.Decimal `gorm:"column:applied_amount;type:numeric(12,2);not null"`
	PreviousPaidAmount decimal.Decimal `gorm:"column:previous_paid_amount;type:numeric(12,2);not null"`
	Settled            bool            `gorm:"column:settled;not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentAllocation) TableName() string {
	return "payment_allocations"
}
