package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/catalog"
)

// Store reads the aggregates the reconciler consumes.
type Store interface {
	SalesRevenue(ctx context.Context, db catalog.Querier, from, to time.Time) (decimal.Decimal, error)
	InvoiceRevenue(ctx context.Context, db catalog.Querier, from, to time.Time) (decimal.Decimal, error)
	Expenses(ctx context.Context, db catalog.Querier, from, to time.Time) (decimal.Decimal, error)
	SoldUnitsFromSales(ctx context.Context, db catalog.Querier, from, to time.Time) ([]SoldUnit, error)
	SoldUnitsFromInvoices(ctx context.Context, db catalog.Querier, from, to time.Time) ([]SoldUnit, error)
}

// SQLStore backs Store with hand-written SQL over pgx. Cancelled invoices are
// excluded everywhere.
type SQLStore struct{}

// SalesRevenue implements Store.
func (SQLStore) SalesRevenue(ctx context.Context, db catalog.Querier, from, to time.Time) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	err := db.QueryRow(ctx, `
SELECT COALESCE(sum(total), 0) FROM sales
WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&revenue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum sales revenue: %w", err)
	}
	return revenue, nil
}

// InvoiceRevenue implements Store.
func (SQLStore) InvoiceRevenue(ctx context.Context, db catalog.Querier, from, to time.Time) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	err := db.QueryRow(ctx, `
SELECT COALESCE(sum(total), 0) FROM invoices
WHERE invoice_date >= $1 AND invoice_date < $2 AND status <> 'cancelled'`, from, to).Scan(&revenue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum invoice revenue: %w", err)
	}
	return revenue, nil
}

// Expenses implements Store. Purchases are the engine's only expense source.
func (SQLStore) Expenses(ctx context.Context, db catalog.Querier, from, to time.Time) (decimal.Decimal, error) {
	var expenses decimal.Decimal
	err := db.QueryRow(ctx, `
SELECT COALESCE(sum(total), 0) FROM purchases
WHERE purchase_date >= $1 AND purchase_date < $2`, from, to).Scan(&expenses)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum purchase expenses: %w", err)
	}
	return expenses, nil
}

// SoldUnitsFromSales implements Store. The wholesale cost is the product's
// current one; a vanished product yields no cost.
func (SQLStore) SoldUnitsFromSales(ctx context.Context, db catalog.Querier, from, to time.Time) ([]SoldUnit, error) {
	rows, err := db.Query(ctx, `
SELECT s.product_name, s.qty, s.final_unit_price, p.wholesale_price
FROM sales s
LEFT JOIN products p ON p.id = s.product_id
WHERE s.created_at >= $1 AND s.created_at < $2`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sold units from sales: %w", err)
	}
	defer rows.Close()

	var units []SoldUnit
	for rows.Next() {
		var unit SoldUnit
		var cost *decimal.Decimal
		if err := rows.Scan(&unit.ProductName, &unit.Qty, &unit.FinalUnitPrice, &cost); err != nil {
			return nil, err
		}
		if cost != nil {
			unit.WholesaleCost = *cost
			unit.HasCost = true
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// SoldUnitsFromInvoices implements Store.
func (SQLStore) SoldUnitsFromInvoices(ctx context.Context, db catalog.Querier, from, to time.Time) ([]SoldUnit, error) {
	rows, err := db.Query(ctx, `
SELECT l.product_name, l.qty, l.final_unit_price, p.wholesale_price
FROM invoice_lines l
JOIN invoices i ON i.id = l.invoice_id
LEFT JOIN products p ON p.id = l.product_id
WHERE i.invoice_date >= $1 AND i.invoice_date < $2 AND i.status <> 'cancelled'`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sold units from invoices: %w", err)
	}
	defer rows.Close()

	var units []SoldUnit
	for rows.Next() {
		var unit SoldUnit
		var cost *decimal.Decimal
		if err := rows.Scan(&unit.ProductName, &unit.Qty, &unit.FinalUnitPrice, &cost); err != nil {
			return nil, err
		}
		if cost != nil {
			unit.WholesaleCost = *cost
			unit.HasCost = true
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}
