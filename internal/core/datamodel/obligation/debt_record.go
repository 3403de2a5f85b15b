package obligation

import (
	"time"

	"github.com/shopspring/decimal"
)

type DebtRecord struct {
	ID             int64           `gorm:"primaryKey"`
	DriverID       int64           `gorm:"column:driver_id;not null;uniqueIndex:idx_debt_records_driver_date,priority:1"`
	EarningDate    time.Time       `gorm:"column:earning_date;type:date;not null;uniqueIndex:idx_debt_records_driver_date,priority:2"`
	ExpectedAmount decimal.Decimal `gorm:"column:expected_amount;type:numeric(12,2);not null"`
	PaidAmount     decimal.Decimal `gorm:"column:paid_amount;type:numeric(12,2);not null"`
	IsPaid         bool            `gorm:"column:is_paid;not null;index"`
	PaymentID      *int64          `gorm:"column:payment_id;index"`
	PaidAt         *time.Time      `gorm:"column:paid_at"`
	DaysOverdue    int             `gorm:"column:days_overdue;not null"`
	Notes          string          `gorm:"column:notes;type:text"`
	LicenseNumber  string          `gorm:"column:license_number;size:50"`
	PromiseToPay   bool            `gorm:"column:promise_to_pay;not null"`
	PromiseDate    *time.Time      `gorm:"column:promise_date;type:date"`
	CreatedBy      string          `gorm:"column:created_by;size:64"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (DebtRecord) TableName() string {
	return "debt_records"
}
