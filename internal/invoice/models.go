// Package invoice manages customer invoices: ordered priced lines, a
// document-level discount, and status tracking. Line edits replace the whole
// collection; only the two status fields mutate in place.
package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/pricing"
)

// Status is the fulfilment state of an invoice.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus is the settlement state of an invoice.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// ValidStatus reports whether s is a known fulfilment status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

// Invoice is a committed document. All price fields are snapshots taken when
// the lines were (re)built.
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	Customer      string          `json:"customer"`
	Channel       string          `json:"channel"`
	Date          time.Time       `json:"date"`
	Lines         []pricing.Line  `json:"lines"`
	DiscountPct   decimal.Decimal `json:"discountPct"`
	DiscountAmt   decimal.Decimal `json:"discountAmt"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	ActorID       string          `json:"actorId"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
