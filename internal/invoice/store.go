package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-warung/internal/catalog"
	"github.com/noah-isme/backend-warung/internal/pricing"
)

// ListFilter narrows invoice listings.
type ListFilter struct {
	From   time.Time
	To     time.Time
	Status Status
	Limit  int
	Offset int
}

// Store persists invoices and their lines.
type Store interface {
	InsertInvoice(ctx context.Context, db catalog.Querier, inv Invoice) error
	InsertLines(ctx context.Context, db catalog.Querier, invoiceID uuid.UUID, lines []pricing.Line) error
	DeleteLines(ctx context.Context, db catalog.Querier, invoiceID uuid.UUID) error
	GetInvoice(ctx context.Context, db catalog.Querier, id uuid.UUID) (Invoice, error)
	UpdateHeader(ctx context.Context, db catalog.Querier, inv Invoice) error
	UpdateStatus(ctx context.Context, db catalog.Querier, id uuid.UUID, status Status, payment PaymentStatus) error
	ListInvoices(ctx context.Context, db catalog.Querier, f ListFilter) ([]Invoice, int64, error)
}

// SQLStore backs Store with hand-written SQL over pgx.
type SQLStore struct{}

const invoiceColumns = `id, customer, channel, invoice_date, discount_pct, discount_amt,
subtotal, discount_total, total, status, payment_status, actor_id, created_at, updated_at`

// InsertInvoice implements Store.
func (SQLStore) InsertInvoice(ctx context.Context, db catalog.Querier, inv Invoice) error {
	_, err := db.Exec(ctx, `
INSERT INTO invoices (id, customer, channel, invoice_date, discount_pct, discount_amt,
subtotal, discount_total, total, status, payment_status, actor_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		inv.ID, inv.Customer, inv.Channel, inv.Date, inv.DiscountPct, inv.DiscountAmt,
		inv.Subtotal, inv.DiscountTotal, inv.Total, string(inv.Status), string(inv.PaymentStatus),
		inv.ActorID, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// InsertLines implements Store. Position preserves the caller's ordering.
func (SQLStore) InsertLines(ctx context.Context, db catalog.Querier, invoiceID uuid.UUID, lines []pricing.Line) error {
	for i, line := range lines {
		_, err := db.Exec(ctx, `
INSERT INTO invoice_lines (id, invoice_id, position, product_id, product_name, qty,
unit_price, discount_pct, discount_amt, final_unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			uuid.New(), invoiceID, i, line.ProductID, line.ProductName, line.Qty,
			line.UnitPrice, line.DiscountPct, line.DiscountAmt, line.FinalUnitPrice, line.LineTotal)
		if err != nil {
			return fmt.Errorf("insert invoice line %d: %w", i, err)
		}
	}
	return nil
}

// DeleteLines implements Store.
func (SQLStore) DeleteLines(ctx context.Context, db catalog.Querier, invoiceID uuid.UUID) error {
	_, err := db.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return fmt.Errorf("delete invoice lines: %w", err)
	}
	return nil
}

// GetInvoice implements Store.
func (SQLStore) GetInvoice(ctx context.Context, db catalog.Querier, id uuid.UUID) (Invoice, error) {
	row := db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	lines, err := listLines(ctx, db, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines = lines
	return inv, nil
}

// UpdateHeader implements Store. Rewrites channel, discounts, and totals.
func (SQLStore) UpdateHeader(ctx context.Context, db catalog.Querier, inv Invoice) error {
	tag, err := db.Exec(ctx, `
UPDATE invoices
SET customer = $2, channel = $3, invoice_date = $4, discount_pct = $5, discount_amt = $6,
    subtotal = $7, discount_total = $8, total = $9, updated_at = now()
WHERE id = $1`,
		inv.ID, inv.Customer, inv.Channel, inv.Date, inv.DiscountPct, inv.DiscountAmt,
		inv.Subtotal, inv.DiscountTotal, inv.Total)
	if err != nil {
		return fmt.Errorf("update invoice header: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus implements Store.
func (SQLStore) UpdateStatus(ctx context.Context, db catalog.Querier, id uuid.UUID, status Status, payment PaymentStatus) error {
	tag, err := db.Exec(ctx, `
UPDATE invoices SET status = $2, payment_status = $3, updated_at = now() WHERE id = $1`,
		id, string(status), string(payment))
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListInvoices implements Store. Headers only; lines load on Get.
func (SQLStore) ListInvoices(ctx context.Context, db catalog.Querier, f ListFilter) ([]Invoice, int64, error) {
	var total int64
	if err := db.QueryRow(ctx, `
SELECT count(*) FROM invoices
WHERE ($1::timestamptz IS NULL OR invoice_date >= $1)
  AND ($2::timestamptz IS NULL OR invoice_date < $2)
  AND ($3::text = '' OR status = $3)`,
		nullTime(f.From), nullTime(f.To), string(f.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	rows, err := db.Query(ctx, `
SELECT `+invoiceColumns+` FROM invoices
WHERE ($1::timestamptz IS NULL OR invoice_date >= $1)
  AND ($2::timestamptz IS NULL OR invoice_date < $2)
  AND ($3::text = '' OR status = $3)
ORDER BY invoice_date DESC, created_at DESC
LIMIT $4 OFFSET $5`,
		nullTime(f.From), nullTime(f.To), string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var items []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

func listLines(ctx context.Context, db catalog.Querier, invoiceID uuid.UUID) ([]pricing.Line, error) {
	rows, err := db.Query(ctx, `
SELECT product_id, product_name, qty, unit_price, discount_pct, discount_amt,
final_unit_price, line_total
FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []pricing.Line
	for rows.Next() {
		var line pricing.Line
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Qty, &line.UnitPrice,
			&line.DiscountPct, &line.DiscountAmt, &line.FinalUnitPrice, &line.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status, payment string
	err := row.Scan(&inv.ID, &inv.Customer, &inv.Channel, &inv.Date, &inv.DiscountPct,
		&inv.DiscountAmt, &inv.Subtotal, &inv.DiscountTotal, &inv.Total, &status, &payment,
		&inv.ActorID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	inv.Status = Status(status)
	inv.PaymentStatus = PaymentStatus(payment)
	return inv, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
