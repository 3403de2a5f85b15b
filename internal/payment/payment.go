package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/frahmantamala/fleet-ledger/internal/core/clock"
	paymentDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/payment"
)

const (
	ChannelCash   = "cash"
	ChannelMpesa  = "mpesa"
	ChannelBank   = "bank"
	ChannelMobile = "mobile"
	ChannelOther  = "other"
)

var Channels = []string{ChannelCash, ChannelMpesa, ChannelBank, ChannelMobile, ChannelOther}

var Statuses = []string{paymentDatamodel.StatusPending, paymentDatamodel.StatusCompleted, paymentDatamodel.StatusCancelled}

var ReceiptStatuses = []string{paymentDatamodel.ReceiptPending, paymentDatamodel.ReceiptGenerated, paymentDatamodel.ReceiptSent}

// NormalizeChannel lower-cases and folds known aliases.
func NormalizeChannel(channel string) string {
	c := strings.ToLower(strings.TrimSpace(channel))
	if c == "mobile_money" {
		return ChannelMpesa
	}
	return c
}

func NormalizeReceiptStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "issued" {
		return paymentDatamodel.ReceiptSent
	}
	return s
}

type Payment struct {
	ID                int64
	ReferenceNumber   string
	DriverID          int64
	Amount            decimal.Decimal
	Channel           string
	CoversDays        []time.Time
	Remarks           string
	Status            string
	PaymentDate       time.Time
	RecordedBy        string
	ReceiptStatus     string
	UnallocatedAmount decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Payment) IsCompleted() bool {
	return p.Status == paymentDatamodel.StatusCompleted
}

// IsStandalone reports a payment recorded without covered days.
func (p *Payment) IsStandalone() bool {
	return len(p.CoversDays) == 0
}

func (p *Payment) ToResponse() PaymentResponse {
	days := make([]string, 0, len(p.CoversDays))
	for _, d := range p.CoversDays {
		days = append(days, clock.FormatDate(d))
	}
	return PaymentResponse{
		ID:                p.ID,
		ReferenceNumber:   p.ReferenceNumber,
		DriverID:          p.DriverID,
		Amount:            p.Amount,
		PaymentChannel:    p.Channel,
		CoversDays:        days,
		Remarks:           p.Remarks,
		Status:            p.Status,
		PaymentDate:       p.PaymentDate,
		RecordedBy:        p.RecordedBy,
		ReceiptStatus:     p.ReceiptStatus,
		UnallocatedAmount: p.UnallocatedAmount,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func encodeDays(days []time.Time) (datatypes.JSON, error) {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, clock.FormatDate(d))
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode covers_days: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeDays(raw datatypes.JSON) ([]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode covers_days: %w", err)
	}
	days := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := clock.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("decode covers_days %q: %w", v, err)
		}
		days = append(days, d)
	}
	return days, nil
}

func ToDataModel(p *Payment) (*paymentDatamodel.Payment, error) {
	days, err := encodeDays(p.CoversDays)
	if err != nil {
		return nil, err
	}
	return &paymentDatamodel.Payment{
		ID:                p.ID,
		ReferenceNumber:   p.ReferenceNumber,
		DriverID:          p.DriverID,
		Amount:            p.Amount,
		PaymentChannel:    p.Channel,
		CoversDays:        days,
		Remarks:           p.Remarks,
		Status:            p.Status,
		PaymentDate:       p.PaymentDate,
		RecordedBy:        p.RecordedBy,
		ReceiptStatus:     p.ReceiptStatus,
		UnallocatedAmount: p.UnallocatedAmount,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}, nil
}

// FromDataModel fails when the stored covers_days cannot be read back.
func FromDataModel(p *paymentDatamodel.Payment) (*Payment, error) {
	days, err := decodeDays(p.CoversDays)
	if err != nil {
		return nil, fmt.Errorf("payment %d: %w", p.ID, err)
	}
	return &Payment{
		ID:                p.ID,
		ReferenceNumber:   p.ReferenceNumber,
		DriverID:          p.DriverID,
		Amount:            p.Amount,
		Channel:           p.PaymentChannel,
		CoversDays:        days,
		Remarks:           p.Remarks,
		Status:            p.Status,
		PaymentDate:       p.PaymentDate,
		RecordedBy:        p.RecordedBy,
		ReceiptStatus:     p.ReceiptStatus,
		UnallocatedAmount: p.UnallocatedAmount,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}, nil
}
