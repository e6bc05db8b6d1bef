// Package report reconciles profit two ways: available funds on a cash basis
// and net profit on a margin basis. The two figures answer different
// questions and are allowed to diverge.
package report

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SoldUnit is one sold line flattened for margin reconciliation.
type SoldUnit struct {
	ProductName    string
	Qty            int64
	FinalUnitPrice decimal.Decimal
	// WholesaleCost is the product's current wholesale price. HasCost is
	// false when the product is gone or never had a cost recorded.
	WholesaleCost decimal.Decimal
	HasCost       bool
}

// Result is the reconciled summary for one window.
type Result struct {
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	TotalExpenses  decimal.Decimal `json:"totalExpenses"`
	NetProfit      decimal.Decimal `json:"netProfit"`
	AvailableFunds decimal.Decimal `json:"availableFunds"`
	Formatted      Formatted       `json:"formatted"`
}

// Formatted carries the display renderings of the four figures.
type Formatted struct {
	TotalRevenue   string `json:"totalRevenue"`
	TotalExpenses  string `json:"totalExpenses"`
	NetProfit      string `json:"netProfit"`
	AvailableFunds string `json:"availableFunds"`
}

// Reconcile computes both profit figures. A sold unit without a usable cost
// contributes zero margin and is logged at warn level; it never fails the
// report.
func Reconcile(units []SoldUnit, revenue, expenses decimal.Decimal, log zerolog.Logger) Result {
	netProfit := decimal.Zero
	for _, unit := range units {
		if !unit.HasCost || unit.WholesaleCost.IsNegative() {
			log.Warn().
				Str("product", unit.ProductName).
				Int64("qty", unit.Qty).
				Msg("missing wholesale cost, unit contributes zero margin")
			continue
		}
		margin := unit.FinalUnitPrice.Sub(unit.WholesaleCost).Mul(decimal.NewFromInt(unit.Qty))
		netProfit = netProfit.Add(margin)
	}
	return Result{
		TotalRevenue:   revenue,
		TotalExpenses:  expenses,
		NetProfit:      netProfit,
		AvailableFunds: revenue.Sub(expenses),
	}
}
