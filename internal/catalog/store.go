package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Querier is the pgx surface shared by pgxpool.Pool and pgx.Tx. Document
// services pass their open transaction so price lookups see a consistent
// snapshot.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists products and raw materials.
type Store interface {
	InsertProduct(ctx context.Context, db Querier, p Product) error
	UpdateProduct(ctx context.Context, db Querier, p Product) error
	GetProduct(ctx context.Context, db Querier, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, db Querier, search string, limit, offset int) ([]Product, int64, error)
	ListLowStockProducts(ctx context.Context, db Querier) ([]Product, error)

	InsertMaterial(ctx context.Context, db Querier, m RawMaterial) error
	UpdateMaterial(ctx context.Context, db Querier, m RawMaterial) error
	GetMaterial(ctx context.Context, db Querier, id uuid.UUID) (RawMaterial, error)
	ListMaterials(ctx context.Context, db Querier, search string, limit, offset int) ([]RawMaterial, int64, error)
	ListLowStockMaterials(ctx context.Context, db Querier) ([]RawMaterial, error)
	UpdateMaterialCost(ctx context.Context, db Querier, id uuid.UUID, unitCost decimal.Decimal) error
}

// SQLStore backs Store with hand-written SQL over pgx.
type SQLStore struct{}

const productColumns = `id, name, unit, wholesale_price, retail_price, shop_price, selling_price,
current_stock, min_stock_alert, created_at, updated_at`

const materialColumns = `id, name, unit, unit_cost, current_stock, min_stock_alert, created_at, updated_at`

// InsertProduct implements Store.
func (SQLStore) InsertProduct(ctx context.Context, db Querier, p Product) error {
	_, err := db.Exec(ctx, `
INSERT INTO products (id, name, unit, wholesale_price, retail_price, shop_price, selling_price,
current_stock, min_stock_alert, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Unit, p.WholesalePrice, p.RetailPrice, p.ShopPrice, p.SellingPrice,
		p.CurrentStock, p.MinStockAlert, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// UpdateProduct implements Store. Stock is not writable here; stock moves
// only through the ledger.
func (SQLStore) UpdateProduct(ctx context.Context, db Querier, p Product) error {
	tag, err := db.Exec(ctx, `
UPDATE products
SET name = $2, unit = $3, wholesale_price = $4, retail_price = $5, shop_price = $6,
    selling_price = $7, min_stock_alert = $8, updated_at = now()
WHERE id = $1`,
		p.ID, p.Name, p.Unit, p.WholesalePrice, p.RetailPrice, p.ShopPrice,
		p.SellingPrice, p.MinStockAlert)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetProduct implements Store.
func (SQLStore) GetProduct(ctx context.Context, db Querier, id uuid.UUID) (Product, error) {
	row := db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// ListProducts implements Store.
func (SQLStore) ListProducts(ctx context.Context, db Querier, search string, limit, offset int) ([]Product, int64, error) {
	pattern := "%" + search + "%"
	var total int64
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM products WHERE $1 = '%%' OR name ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	rows, err := db.Query(ctx, `
SELECT `+productColumns+` FROM products
WHERE $1 = '%%' OR name ILIKE $1
ORDER BY name
LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// ListLowStockProducts implements Store.
func (SQLStore) ListLowStockProducts(ctx context.Context, db Querier) ([]Product, error) {
	rows, err := db.Query(ctx, `
SELECT `+productColumns+` FROM products
WHERE current_stock <= min_stock_alert
ORDER BY current_stock - min_stock_alert`)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// InsertMaterial implements Store.
func (SQLStore) InsertMaterial(ctx context.Context, db Querier, m RawMaterial) error {
	_, err := db.Exec(ctx, `
INSERT INTO raw_materials (id, name, unit, unit_cost, current_stock, min_stock_alert, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.Name, m.Unit, m.UnitCost, m.CurrentStock, m.MinStockAlert, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	return nil
}

// UpdateMaterial implements Store.
func (SQLStore) UpdateMaterial(ctx context.Context, db Querier, m RawMaterial) error {
	tag, err := db.Exec(ctx, `
UPDATE raw_materials
SET name = $2, unit = $3, unit_cost = $4, min_stock_alert = $5, updated_at = now()
WHERE id = $1`,
		m.ID, m.Name, m.Unit, m.UnitCost, m.MinStockAlert)
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetMaterial implements Store.
func (SQLStore) GetMaterial(ctx context.Context, db Querier, id uuid.UUID) (RawMaterial, error) {
	row := db.QueryRow(ctx, `SELECT `+materialColumns+` FROM raw_materials WHERE id = $1`, id)
	return scanMaterial(row)
}

// ListMaterials implements Store.
func (SQLStore) ListMaterials(ctx context.Context, db Querier, search string, limit, offset int) ([]RawMaterial, int64, error) {
	pattern := "%" + search + "%"
	var total int64
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM raw_materials WHERE $1 = '%%' OR name ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count materials: %w", err)
	}
	rows, err := db.Query(ctx, `
SELECT `+materialColumns+` FROM raw_materials
WHERE $1 = '%%' OR name ILIKE $1
ORDER BY name
LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	var items []RawMaterial
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

// ListLowStockMaterials implements Store.
func (SQLStore) ListLowStockMaterials(ctx context.Context, db Querier) ([]RawMaterial, error) {
	rows, err := db.Query(ctx, `
SELECT `+materialColumns+` FROM raw_materials
WHERE current_stock <= min_stock_alert
ORDER BY current_stock - min_stock_alert`)
	if err != nil {
		return nil, fmt.Errorf("list low stock materials: %w", err)
	}
	defer rows.Close()

	var items []RawMaterial
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// UpdateMaterialCost implements Store. Purchases refresh the replacement cost
// used by later usage snapshots and margin reports.
func (SQLStore) UpdateMaterialCost(ctx context.Context, db Querier, id uuid.UUID, unitCost decimal.Decimal) error {
	tag, err := db.Exec(ctx,
		`UPDATE raw_materials SET unit_cost = $2, updated_at = now() WHERE id = $1`, id, unitCost)
	if err != nil {
		return fmt.Errorf("update material cost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Unit, &p.WholesalePrice, &p.RetailPrice, &p.ShopPrice,
		&p.SellingPrice, &p.CurrentStock, &p.MinStockAlert, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func scanMaterial(row pgx.Row) (RawMaterial, error) {
	var m RawMaterial
	err := row.Scan(&m.ID, &m.Name, &m.Unit, &m.UnitCost, &m.CurrentStock, &m.MinStockAlert,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return RawMaterial{}, err
	}
	return m, nil
}
