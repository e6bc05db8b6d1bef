// Package ledger is the current-balance store for product and raw-material
// stock. Sale, invoice, purchase, usage, and catalog adjustments all funnel
// through Adjust so there is a single mutation path with a single invariant:
// a balance never goes negative.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two stocked target types.
type Kind string

const (
	// KindProduct targets finished goods with integer stock.
	KindProduct Kind = "product"
	// KindMaterial targets raw materials with fractional stock.
	KindMaterial Kind = "material"
)

// Cause records which business event produced a stock mutation.
type Cause string

const (
	CauseSale       Cause = "sale"
	CauseInvoice    Cause = "invoice"
	CausePurchase   Cause = "purchase"
	CauseUsage      Cause = "usage"
	CauseAdjustment Cause = "adjustment"
)

// Target identifies one stocked row.
type Target struct {
	Kind Kind
	ID   uuid.UUID
}

// Mutation describes a requested stock change. CostBasis, when set, snapshots
// the unit cost in effect at mutation time.
type Mutation struct {
	Target    Target
	Delta     decimal.Decimal
	Cause     Cause
	Actor     string
	CostBasis *decimal.Decimal
}

// Balance is the post-mutation state of the target.
type Balance struct {
	Name      string          `json:"name"`
	Current   decimal.Decimal `json:"current"`
	Threshold decimal.Decimal `json:"threshold"`
	LowStock  bool            `json:"lowStock"`
}

// InsufficientStockError reports a decrement that would overdraw the target.
// The message names the target and both quantities so the caller can act on
// it. Stock is left unchanged.
type InsufficientStockError struct {
	Target    Target
	Name      string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %q: requested %s, available %s",
		e.Target.Kind, e.Name, e.Requested, e.Available)
}
