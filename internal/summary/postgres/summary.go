package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	paymentDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/payment"
	"github.com/frahmantamala/fleet-ledger/internal/summary"
)

// SummaryRepository runs the report aggregates as plain SQL through sqlx.
// Queries are written with ? placeholders and rebound for the driver in use.
type SummaryRepository struct {
	db *sqlx.DB
}

func NewSummaryRepository(db *sqlx.DB) summary.RepositoryAPI {
	return &SummaryRepository{db: db}
}

// rangeClause restricts column to the inclusive day window r.
func rangeClause(column string, r summary.Range) (string, []interface{}) {
	var (
		parts []string
		args  []interface{}
	)
	if !r.From.IsZero() {
		parts = append(parts, column+" >= ?")
		args = append(args, r.From)
	}
	if !r.To.IsZero() {
		parts = append(parts, column+" < ?")
		args = append(args, r.To.AddDate(0, 0, 1))
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(parts, " AND "), args
}

const remainingExpr = "CASE WHEN r.expected_amount > r.paid_amount THEN r.expected_amount - r.paid_amount ELSE 0 END"

func driverDebtQuery(filter summary.DriverListFilter, today time.Time) (string, []interface{}) {
	args := []interface{}{false, false, false, today}
	q := `SELECT d.id AS driver_id, d.name AS name,
		COALESCE(d.phone, '') AS phone,
		COALESCE(d.license_number, '') AS license_number,
		COALESCE(SUM(CASE WHEN r.is_paid = ? THEN ` + remainingExpr + ` ELSE 0 END), 0) AS total_debt,
		COUNT(CASE WHEN r.is_paid = ? THEN 1 END) AS unpaid_days,
		COUNT(CASE WHEN r.is_paid = ? AND r.earning_date < ? THEN 1 END) AS overdue_days
		FROM drivers d
		LEFT JOIN debt_records r ON r.driver_id = d.id`

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		q += ` WHERE (LOWER(d.name) LIKE ? OR LOWER(d.phone) LIKE ? OR LOWER(d.license_number) LIKE ?)`
		args = append(args, pattern, pattern, pattern)
	}
	q += ` GROUP BY d.id, d.name, d.phone, d.license_number`

	outer := `SELECT driver_id, name, phone, license_number, total_debt, unpaid_days, overdue_days FROM (` + q + `) t`
	if filter.OnlyWithDebts {
		outer += ` WHERE t.total_debt > 0`
	}
	return outer, args
}

func (r *SummaryRepository) ListDriversWithDebt(ctx context.Context, filter summary.DriverListFilter, today time.Time, limit, offset int) ([]*summary.DriverDebtRow, error) {
	q, args := driverDebtQuery(filter, today)
	q += ` ORDER BY CASE WHEN t.total_debt > 0 THEN 0 ELSE 1 END, t.total_debt DESC, t.name ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows := []*summary.DriverDebtRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SummaryRepository) CountDriversWithDebt(ctx context.Context, filter summary.DriverListFilter) (int64, error) {
	q, args := driverDebtQuery(filter, time.Time{})
	var total int64
	err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM (`+q+`) c`), args...)
	return total, err
}

func (r *SummaryRepository) CompletedPaymentsTotal(ctx context.Context, driverID int64, rg summary.Range) (decimal.Decimal, error) {
	where, rangeArgs := rangeClause("payment_date", rg)
	q := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE driver_id = ? AND status = ?` + where
	args := append([]interface{}{driverID, paymentDatamodel.StatusCompleted}, rangeArgs...)

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(q), args...); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *SummaryRepository) PaymentsByChannel(ctx context.Context, rg summary.Range) ([]*summary.ChannelRow, error) {
	where, rangeArgs := rangeClause("payment_date", rg)
	q := `SELECT payment_channel, COUNT(*) AS payment_count, COALESCE(SUM(amount), 0) AS total_amount
		FROM payments WHERE status = ?` + where + `
		GROUP BY payment_channel ORDER BY payment_channel`
	args := append([]interface{}{paymentDatamodel.StatusCompleted}, rangeArgs...)

	rows := []*summary.ChannelRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SummaryRepository) ReceiptCounts(ctx context.Context, rg summary.Range) (*summary.ReceiptCounts, error) {
	where, rangeArgs := rangeClause("payment_date", rg)
	q := `SELECT
		COUNT(CASE WHEN receipt_status IN (?, ?) THEN 1 END) AS receipts_count,
		COUNT(CASE WHEN receipt_status = ? THEN 1 END) AS pending_receipts_count
		FROM payments WHERE status = ?` + where
	args := append([]interface{}{
		paymentDatamodel.ReceiptGenerated,
		paymentDatamodel.ReceiptSent,
		paymentDatamodel.ReceiptPending,
		paymentDatamodel.StatusCompleted,
	}, rangeArgs...)

	var counts summary.ReceiptCounts
	if err := r.db.GetContext(ctx, &counts, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return &counts, nil
}

func (r *SummaryRepository) DebtTotals(ctx context.Context, rg summary.Range, today time.Time) (*summary.DebtTotals, error) {
	where, rangeArgs := rangeClause("r.earning_date", rg)
	q := `SELECT
		COALESCE(SUM(` + remainingExpr + `), 0) AS total_outstanding_debt,
		COALESCE(SUM(CASE WHEN r.earning_date < ? THEN ` + remainingExpr + ` ELSE 0 END), 0) AS overdue_debt,
		COUNT(*) AS debts_count
		FROM debt_records r WHERE r.is_paid = ?` + where
	args := append([]interface{}{today, false}, rangeArgs...)

	var totals summary.DebtTotals
	if err := r.db.GetContext(ctx, &totals, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *SummaryRepository) TopPayers(ctx context.Context, rg summary.Range, limit int) ([]*summary.TopPayer, error) {
	where, rangeArgs := rangeClause("p.payment_date", rg)
	q := `SELECT d.id AS driver_id, d.name AS name,
		COUNT(p.id) AS payment_count,
		COALESCE(SUM(p.amount), 0) AS total_paid
		FROM payments p
		JOIN drivers d ON d.id = p.driver_id
		WHERE p.status = ?` + where + `
		GROUP BY d.id, d.name
		ORDER BY total_paid DESC, d.name ASC
		LIMIT ?`
	args := append([]interface{}{paymentDatamodel.StatusCompleted}, rangeArgs...)
	args = append(args, limit)

	rows := []*summary.TopPayer{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
