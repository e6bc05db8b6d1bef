// Package catalog manages the product and raw-material registries, the
// pricing fields the resolver reads, and manual stock corrections.
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/pricing"
)

// Product is a finished good sold over the counter or on invoice. Stock is
// counted in whole units.
type Product struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Unit           string          `json:"unit"`
	WholesalePrice decimal.Decimal `json:"wholesalePrice"`
	RetailPrice    decimal.Decimal `json:"retailPrice"`
	ShopPrice      decimal.Decimal `json:"shopPrice"`
	SellingPrice   decimal.Decimal `json:"sellingPrice"`
	CurrentStock   int64           `json:"currentStock"`
	MinStockAlert  int64           `json:"minStockAlert"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Prices exposes the product's price fields in the shape the price resolver
// consumes.
func (p Product) Prices() pricing.ProductPrices {
	return pricing.ProductPrices{
		Wholesale: p.WholesalePrice,
		Retail:    p.RetailPrice,
		Shop:      p.ShopPrice,
		Legacy:    p.SellingPrice,
	}
}

// LowStock reports whether the product is at or below its alert threshold.
func (p Product) LowStock() bool {
	return p.CurrentStock <= p.MinStockAlert
}

// RawMaterial is an input consumed by production. Stock may be fractional.
type RawMaterial struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	CurrentStock  decimal.Decimal `json:"currentStock"`
	MinStockAlert decimal.Decimal `json:"minStockAlert"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// LowStock reports whether the material is at or below its alert threshold.
func (m RawMaterial) LowStock() bool {
	return m.CurrentStock.LessThanOrEqual(m.MinStockAlert)
}
