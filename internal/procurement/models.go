// Package procurement records raw-material purchases and production usage.
// Purchases grow stock without bound and refresh the material's last-purchase
// cost; usage draws stock down through the guarded ledger path and snapshots
// the cost in effect when the material was consumed.
package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase is a committed raw-material purchase.
type Purchase struct {
	ID           uuid.UUID       `json:"id"`
	MaterialID   uuid.UUID       `json:"materialId"`
	MaterialName string          `json:"materialName"`
	Qty          decimal.Decimal `json:"qty"`
	UnitCost     decimal.Decimal `json:"unitCost"`
	Total        decimal.Decimal `json:"total"`
	Date         time.Time       `json:"date"`
	ActorID      string          `json:"actorId"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Usage is a committed raw-material consumption. CostBasis is the material's
// unit cost at the moment the usage was recorded.
type Usage struct {
	ID           uuid.UUID       `json:"id"`
	MaterialID   uuid.UUID       `json:"materialId"`
	MaterialName string          `json:"materialName"`
	Qty          decimal.Decimal `json:"qty"`
	CostBasis    decimal.Decimal `json:"costBasis"`
	Total        decimal.Decimal `json:"total"`
	Date         time.Time       `json:"date"`
	ActorID      string          `json:"actorId"`
	CreatedAt    time.Time       `json:"createdAt"`
}
