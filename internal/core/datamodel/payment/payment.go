package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	ReceiptPending   = "pending"
	ReceiptGenerated = "generated"
	ReceiptSent      = "sent"
)

type Payment struct {
	ID                int64           `gorm:"primaryKey"`
	ReferenceNumber   string          `gorm:"column:reference_number;size:40;not null;uniqueIndex"`
	DriverID          int64           `gorm:"column:driver_id;not null;index"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	PaymentChannel    string          `gorm:"column:payment_channel;size:20;not null"`
	CoversDays        datatypes.JSON  `gorm:"column:covers_days"`
	Remarks           string          `gorm:"column:remarks;type:text"`
	Status            string          `gorm:"column:status;size:20;not null;index"`
	PaymentDate       time.Time       `gorm:"column:payment_date;not null;index"`
	RecordedBy        string          `gorm:"column:recorded_by;size:64"`
	ReceiptStatus     string          `gorm:"column:receipt_status;size:20;not null"`
	UnallocatedAmount decimal.Decimal `gorm:"column:unallocated_amount;type:numeric(12,2);not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
