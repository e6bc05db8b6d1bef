// Package sales records quick counter sales. A sale is one product, one
// quantity, priced at capture time and committed atomically with its stock
// decrement.
package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is a committed counter sale. Price fields are snapshots; later catalog
// edits never rewrite them.
type Sale struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"productId"`
	ProductName    string          `json:"productName"`
	Channel        string          `json:"channel"`
	Qty            int             `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	DiscountPct    decimal.Decimal `json:"discountPct"`
	DiscountAmt    decimal.Decimal `json:"discountAmt"`
	FinalUnitPrice decimal.Decimal `json:"finalUnitPrice"`
	Total          decimal.Decimal `json:"total"`
	ActorID        string          `json:"actorId"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}
