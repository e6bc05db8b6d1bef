// Package pricing implements price resolution, the two-stage discount
// calculation, and line/document total aggregation. Everything here is pure
// computation; persistence and stock effects belong to the callers.
package pricing

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned when a line quantity is zero or negative.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrUnknownChannel is returned for sale channels outside retail and shop.
	ErrUnknownChannel = errors.New("unknown sale channel")
)

// Channel identifies the sale context that selects a product price.
type Channel string

const (
	// ChannelRetail sells at the product's retail price.
	ChannelRetail Channel = "retail"
	// ChannelShop sells at the product's shop price.
	ChannelShop Channel = "shop"
)

// ParseChannel normalises a raw channel value. The wholesale price is cost
// basis only and is never an offered channel.
func ParseChannel(value string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(value))) {
	case ChannelRetail:
		return ChannelRetail, nil
	case ChannelShop:
		return ChannelShop, nil
	default:
		return "", ErrUnknownChannel
	}
}

// ProductPrices carries the channel prices of a single product.
type ProductPrices struct {
	Wholesale decimal.Decimal
	Retail    decimal.Decimal
	Shop      decimal.Decimal
	Legacy    decimal.Decimal
}

// ResolveUnitPrice maps (product, channel) to a unit price. An unset channel
// price falls back to the legacy selling price; when that is also unset the
// result is zero. Zero is a valid (if suspicious) price, never an error.
func ResolveUnitPrice(prices ProductPrices, channel Channel) decimal.Decimal {
	var price decimal.Decimal
	switch channel {
	case ChannelShop:
		price = prices.Shop
	default:
		price = prices.Retail
	}
	if price.IsPositive() {
		return price
	}
	if prices.Legacy.IsPositive() {
		return prices.Legacy
	}
	return decimal.Zero
}

var hundred = decimal.NewFromInt(100)

// ApplyDiscount applies a percentage and a fixed amount to a base amount.
// The two parts are additive, not cascaded: discount = base*pct/100 + fixed.
// The result floors at zero. Percentages outside [0,100] are not clamped
// here; callers constrain input. A negative fixed amount raises the result.
func ApplyDiscount(base, pct, fixed decimal.Decimal) decimal.Decimal {
	discount := base.Mul(pct).Div(hundred).Add(fixed)
	final := base.Sub(discount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}

// Line is one priced product entry inside a document.
type Line struct {
	ProductID      uuid.UUID       `json:"productId"`
	ProductName    string          `json:"productName"`
	Qty            int             `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	DiscountPct    decimal.Decimal `json:"discountPct"`
	DiscountAmt    decimal.Decimal `json:"discountAmt"`
	FinalUnitPrice decimal.Decimal `json:"finalUnitPrice"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
}

// BuildLine resolves the unit price for the document's channel and computes
// the discounted line total. The per-line discount applies to the unit price;
// the line total is the discounted unit price times the quantity.
func BuildLine(productID uuid.UUID, name string, prices ProductPrices, channel Channel, qty int, discountPct, discountAmt decimal.Decimal) (Line, error) {
	if qty <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	unit := ResolveUnitPrice(prices, channel)
	final := ApplyDiscount(unit, discountPct, discountAmt)
	return Line{
		ProductID:      productID,
		ProductName:    name,
		Qty:            qty,
		UnitPrice:      unit,
		DiscountPct:    discountPct,
		DiscountAmt:    discountAmt,
		FinalUnitPrice: final,
		LineTotal:      final.Mul(decimal.NewFromInt(int64(qty))),
	}, nil
}

// Reprice recomputes a line from another channel's price. Quantity and
// discounts are preserved. Callers must reprice every line when a document's
// channel changes; a partially repriced document is internally inconsistent.
func Reprice(line Line, prices ProductPrices, channel Channel) Line {
	unit := ResolveUnitPrice(prices, channel)
	final := ApplyDiscount(unit, line.DiscountPct, line.DiscountAmt)
	line.UnitPrice = unit
	line.FinalUnitPrice = final
	line.LineTotal = final.Mul(decimal.NewFromInt(int64(line.Qty)))
	return line
}

// Summary aggregates the document totals.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Totals sums line totals and applies the document-level discount once to the
// subtotal, with the same semantics as ApplyDiscount. This is a second,
// independent stage on top of per-line discounts. A document with no lines
// yields an all-zero summary regardless of the discount fields.
func Totals(lines []Line, docPct, docFixed decimal.Decimal) Summary {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal)
	}
	total := ApplyDiscount(subtotal, docPct, docFixed)
	return Summary{
		Subtotal: subtotal,
		Discount: subtotal.Sub(total),
		Total:    total,
	}
}
