package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-warung/internal/catalog"
)

// ListFilter narrows sale listings.
type ListFilter struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Store persists sales.
type Store interface {
	InsertSale(ctx context.Context, db catalog.Querier, s Sale) error
	ListSales(ctx context.Context, db catalog.Querier, f ListFilter) ([]Sale, int64, error)
}

// SQLStore backs Store with hand-written SQL over pgx.
type SQLStore struct{}

const saleColumns = `id, product_id, product_name, channel, qty, unit_price, discount_pct,
discount_amt, final_unit_price, total, actor_id, note, created_at`

// InsertSale implements Store.
func (SQLStore) InsertSale(ctx context.Context, db catalog.Querier, s Sale) error {
	_, err := db.Exec(ctx, `
INSERT INTO sales (id, product_id, product_name, channel, qty, unit_price, discount_pct,
discount_amt, final_unit_price, total, actor_id, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.ProductID, s.ProductName, s.Channel, s.Qty, s.UnitPrice, s.DiscountPct,
		s.DiscountAmt, s.FinalUnitPrice, s.Total, s.ActorID, s.Note, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// ListSales implements Store. The window is [from, to).
func (SQLStore) ListSales(ctx context.Context, db catalog.Querier, f ListFilter) ([]Sale, int64, error) {
	var total int64
	if err := db.QueryRow(ctx, `
SELECT count(*) FROM sales
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)`,
		nullTime(f.From), nullTime(f.To)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}
	rows, err := db.Query(ctx, `
SELECT `+saleColumns+` FROM sales
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`,
		nullTime(f.From), nullTime(f.To), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var items []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.ProductID, &s.ProductName, &s.Channel, &s.Qty, &s.UnitPrice,
		&s.DiscountPct, &s.DiscountAmt, &s.FinalUnitPrice, &s.Total, &s.ActorID, &s.Note, &s.CreatedAt)
	if err != nil {
		return Sale{}, err
	}
	return s, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
