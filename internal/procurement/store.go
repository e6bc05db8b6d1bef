package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-warung/internal/catalog"
)

// ListFilter narrows purchase and usage listings.
type ListFilter struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Store persists purchases and usages.
type Store interface {
	InsertPurchase(ctx context.Context, db catalog.Querier, p Purchase) error
	ListPurchases(ctx context.Context, db catalog.Querier, f ListFilter) ([]Purchase, int64, error)
	InsertUsage(ctx context.Context, db catalog.Querier, u Usage) error
	ListUsages(ctx context.Context, db catalog.Querier, f ListFilter) ([]Usage, int64, error)
}

// SQLStore backs Store with hand-written SQL over pgx.
type SQLStore struct{}

// InsertPurchase implements Store.
func (SQLStore) InsertPurchase(ctx context.Context, db catalog.Querier, p Purchase) error {
	_, err := db.Exec(ctx, `
INSERT INTO purchases (id, material_id, material_name, qty, unit_cost, total, purchase_date, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.MaterialID, p.MaterialName, p.Qty, p.UnitCost, p.Total, p.Date, p.ActorID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// ListPurchases implements Store.
func (SQLStore) ListPurchases(ctx context.Context, db catalog.Querier, f ListFilter) ([]Purchase, int64, error) {
	var total int64
	if err := db.QueryRow(ctx, `
SELECT count(*) FROM purchases
WHERE ($1::timestamptz IS NULL OR purchase_date >= $1)
  AND ($2::timestamptz IS NULL OR purchase_date < $2)`,
		nullTime(f.From), nullTime(f.To)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}
	rows, err := db.Query(ctx, `
SELECT id, material_id, material_name, qty, unit_cost, total, purchase_date, actor_id, created_at
FROM purchases
WHERE ($1::timestamptz IS NULL OR purchase_date >= $1)
  AND ($2::timestamptz IS NULL OR purchase_date < $2)
ORDER BY purchase_date DESC, created_at DESC
LIMIT $3 OFFSET $4`,
		nullTime(f.From), nullTime(f.To), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var items []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// InsertUsage implements Store.
func (SQLStore) InsertUsage(ctx context.Context, db catalog.Querier, u Usage) error {
	_, err := db.Exec(ctx, `
INSERT INTO usages (id, material_id, material_name, qty, cost_basis, total, usage_date, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.MaterialID, u.MaterialName, u.Qty, u.CostBasis, u.Total, u.Date, u.ActorID, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// ListUsages implements Store.
func (SQLStore) ListUsages(ctx context.Context, db catalog.Querier, f ListFilter) ([]Usage, int64, error) {
	var total int64
	if err := db.QueryRow(ctx, `
SELECT count(*) FROM usages
WHERE ($1::timestamptz IS NULL OR usage_date >= $1)
  AND ($2::timestamptz IS NULL OR usage_date < $2)`,
		nullTime(f.From), nullTime(f.To)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count usages: %w", err)
	}
	rows, err := db.Query(ctx, `
SELECT id, material_id, material_name, qty, cost_basis, total, usage_date, actor_id, created_at
FROM usages
WHERE ($1::timestamptz IS NULL OR usage_date >= $1)
  AND ($2::timestamptz IS NULL OR usage_date < $2)
ORDER BY usage_date DESC, created_at DESC
LIMIT $3 OFFSET $4`,
		nullTime(f.From), nullTime(f.To), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list usages: %w", err)
	}
	defer rows.Close()

	var items []Usage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.MaterialID, &p.MaterialName, &p.Qty, &p.UnitCost, &p.Total,
		&p.Date, &p.ActorID, &p.CreatedAt)
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

func scanUsage(row pgx.Row) (Usage, error) {
	var u Usage
	err := row.Scan(&u.ID, &u.MaterialID, &u.MaterialName, &u.Qty, &u.CostBasis, &u.Total,
		&u.Date, &u.ActorID, &u.CreatedAt)
	if err != nil {
		return Usage{}, err
	}
	return u, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
