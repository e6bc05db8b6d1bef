package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/catalog"
	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/ledger"
	"github.com/noah-isme/backend-warung/internal/obs"
	"github.com/noah-isme/backend-warung/internal/pricing"
)

// TxBeginner starts transactions. Satisfied by pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ProductReader is the slice of the catalog store an invoice needs.
type ProductReader interface {
	GetProduct(ctx context.Context, db catalog.Querier, id uuid.UUID) (catalog.Product, error)
}

// LineInput is one requested invoice line.
type LineInput struct {
	ProductID   uuid.UUID       `json:"productId" validate:"required"`
	Qty         int             `json:"qty" validate:"gt=0"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	DiscountAmt decimal.Decimal `json:"discountAmt"`
}

// InvoiceInput is the request body for creating an invoice.
type InvoiceInput struct {
	Customer    string          `json:"customer" validate:"required,max=200"`
	Channel     string          `json:"channel"`
	Date        time.Time       `json:"date"`
	Lines       []LineInput     `json:"lines" validate:"required,min=1,dive"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	DiscountAmt decimal.Decimal `json:"discountAmt"`
}

// StatusInput patches the two in-place mutable fields.
type StatusInput struct {
	Status        *Status        `json:"status"`
	PaymentStatus *PaymentStatus `json:"paymentStatus"`
}

// Service builds, edits, and lists invoices.
type Service struct {
	Pool     TxBeginner
	DB       catalog.Querier
	Store    Store
	Catalog  ProductReader
	Ledger   *ledger.Service
	Validate *validator.Validate
	Log      zerolog.Logger
}

// Create prices every line, totals the document, and commits the invoice,
// its lines, and the per-line stock decrements in one transaction.
func (s *Service) Create(ctx context.Context, in InvoiceInput, actor string) (Invoice, error) {
	if err := s.validateInput(in); err != nil {
		return Invoice{}, err
	}
	channel, err := pricing.ParseChannel(in.Channel)
	if err != nil {
		return Invoice{}, common.ValidationError("channel", err.Error())
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Invoice{}, fmt.Errorf("begin invoice tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines, err := s.buildLines(ctx, tx, channel, in.Lines)
	if err != nil {
		return Invoice{}, err
	}
	summary := pricing.Totals(lines, in.DiscountPct, in.DiscountAmt)

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	now := time.Now().UTC()
	inv := Invoice{
		ID:            uuid.New(),
		Customer:      in.Customer,
		Channel:       string(channel),
		Date:          date,
		Lines:         lines,
		DiscountPct:   in.DiscountPct,
		DiscountAmt:   in.DiscountAmt,
		Subtotal:      summary.Subtotal,
		DiscountTotal: summary.Discount,
		Total:         summary.Total,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		ActorID:       actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.InsertInvoice(ctx, tx, inv); err != nil {
		return Invoice{}, err
	}
	if err := s.Store.InsertLines(ctx, tx, inv.ID, lines); err != nil {
		return Invoice{}, err
	}
	if err := s.adjustStock(ctx, tx, lines, -1, actor); err != nil {
		return Invoice{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, fmt.Errorf("commit invoice: %w", err)
	}
	if obs.DocumentsCommittedTotal != nil {
		obs.DocumentsCommittedTotal.WithLabelValues("invoice").Inc()
	}
	s.Log.Info().
		Str("invoice_id", inv.ID.String()).
		Str("customer", inv.Customer).
		Str("channel", inv.Channel).
		Int("lines", len(lines)).
		Str("total", inv.Total.String()).
		Str("actor_id", actor).
		Msg("invoice committed")
	return inv, nil
}

// ReplaceLines swaps the whole line collection. The old lines' decrements are
// reversed, the new set is priced against current catalog prices and
// decremented, and the totals are recomputed, all in one transaction.
func (s *Service) ReplaceLines(ctx context.Context, id uuid.UUID, inputs []LineInput, actor string) (Invoice, error) {
	if len(inputs) == 0 {
		return Invoice{}, common.ValidationError("lines", "at least one line is required")
	}
	for i, in := range inputs {
		if in.Qty <= 0 {
			return Invoice{}, common.ValidationError(fmt.Sprintf("lines[%d].qty", i), "quantity must be a positive integer")
		}
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Invoice{}, fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inv, err := s.getInvoice(ctx, tx, id)
	if err != nil {
		return Invoice{}, err
	}

	if err := s.adjustStock(ctx, tx, inv.Lines, +1, actor); err != nil {
		return Invoice{}, err
	}

	lines, err := s.buildLines(ctx, tx, pricing.Channel(inv.Channel), inputs)
	if err != nil {
		return Invoice{}, err
	}
	if err := s.adjustStock(ctx, tx, lines, -1, actor); err != nil {
		return Invoice{}, err
	}

	summary := pricing.Totals(lines, inv.DiscountPct, inv.DiscountAmt)
	inv.Lines = lines
	inv.Subtotal = summary.Subtotal
	inv.DiscountTotal = summary.Discount
	inv.Total = summary.Total

	if err := s.Store.DeleteLines(ctx, tx, inv.ID); err != nil {
		return Invoice{}, err
	}
	if err := s.Store.InsertLines(ctx, tx, inv.ID, lines); err != nil {
		return Invoice{}, err
	}
	if err := s.Store.UpdateHeader(ctx, tx, inv); err != nil {
		return Invoice{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, fmt.Errorf("commit replace lines: %w", err)
	}
	s.Log.Info().Str("invoice_id", inv.ID.String()).Int("lines", len(lines)).Str("actor_id", actor).
		Msg("invoice lines replaced")
	return inv, nil
}

// SwitchChannel reprices every line from the new channel's current prices and
// recomputes the totals. Quantities, and therefore stock, are untouched.
func (s *Service) SwitchChannel(ctx context.Context, id uuid.UUID, rawChannel, actor string) (Invoice, error) {
	channel, err := pricing.ParseChannel(rawChannel)
	if err != nil {
		return Invoice{}, common.ValidationError("channel", err.Error())
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Invoice{}, fmt.Errorf("begin switch tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inv, err := s.getInvoice(ctx, tx, id)
	if err != nil {
		return Invoice{}, err
	}

	repriced := make([]pricing.Line, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		product, err := s.Catalog.GetProduct(ctx, tx, line.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Invoice{}, common.NotFoundError("product", err)
			}
			return Invoice{}, fmt.Errorf("load product: %w", err)
		}
		repriced = append(repriced, pricing.Reprice(line, product.Prices(), channel))
	}

	summary := pricing.Totals(repriced, inv.DiscountPct, inv.DiscountAmt)
	inv.Channel = string(channel)
	inv.Lines = repriced
	inv.Subtotal = summary.Subtotal
	inv.DiscountTotal = summary.Discount
	inv.Total = summary.Total

	if err := s.Store.DeleteLines(ctx, tx, inv.ID); err != nil {
		return Invoice{}, err
	}
	if err := s.Store.InsertLines(ctx, tx, inv.ID, repriced); err != nil {
		return Invoice{}, err
	}
	if err := s.Store.UpdateHeader(ctx, tx, inv); err != nil {
		return Invoice{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, fmt.Errorf("commit channel switch: %w", err)
	}
	s.Log.Info().Str("invoice_id", inv.ID.String()).Str("channel", inv.Channel).Str("actor_id", actor).
		Msg("invoice channel switched")
	return inv, nil
}

// PatchStatus updates the fulfilment and/or payment status.
func (s *Service) PatchStatus(ctx context.Context, id uuid.UUID, in StatusInput) (Invoice, error) {
	if in.Status == nil && in.PaymentStatus == nil {
		return Invoice{}, common.ValidationError("status", "at least one status field is required")
	}
	if in.Status != nil && !ValidStatus(*in.Status) {
		return Invoice{}, common.ValidationError("status", "unknown status")
	}
	if in.PaymentStatus != nil && !ValidPaymentStatus(*in.PaymentStatus) {
		return Invoice{}, common.ValidationError("paymentStatus", "unknown payment status")
	}

	inv, err := s.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if in.Status != nil {
		inv.Status = *in.Status
	}
	if in.PaymentStatus != nil {
		inv.PaymentStatus = *in.PaymentStatus
	}
	if err := s.Store.UpdateStatus(ctx, s.DB, id, inv.Status, inv.PaymentStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, common.NotFoundError("invoice", err)
		}
		return Invoice{}, err
	}
	return inv, nil
}

// Get fetches one invoice with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return s.getInvoice(ctx, s.DB, id)
}

// List returns invoice headers within the window, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Invoice, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, common.ValidationError("status", "unknown status")
	}
	return s.Store.ListInvoices(ctx, s.DB, f)
}

func (s *Service) getInvoice(ctx context.Context, db catalog.Querier, id uuid.UUID) (Invoice, error) {
	inv, err := s.Store.GetInvoice(ctx, db, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, common.NotFoundError("invoice", err)
		}
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (s *Service) buildLines(ctx context.Context, db catalog.Querier, channel pricing.Channel, inputs []LineInput) ([]pricing.Line, error) {
	lines := make([]pricing.Line, 0, len(inputs))
	for i, in := range inputs {
		product, err := s.Catalog.GetProduct(ctx, db, in.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, common.NotFoundError("product", err)
			}
			return nil, fmt.Errorf("load product for line %d: %w", i, err)
		}
		line, err := pricing.BuildLine(product.ID, product.Name, product.Prices(), channel,
			in.Qty, in.DiscountPct, in.DiscountAmt)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// adjustStock applies sign*qty for every line through the ledger.
func (s *Service) adjustStock(ctx context.Context, db catalog.Querier, lines []pricing.Line, sign int64, actor string) error {
	for _, line := range lines {
		if _, err := s.Ledger.Adjust(ctx, db, ledger.Mutation{
			Target: ledger.Target{Kind: ledger.KindProduct, ID: line.ProductID},
			Delta:  decimal.NewFromInt(sign * int64(line.Qty)),
			Cause:  ledger.CauseInvoice,
			Actor:  actor,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) validateInput(in any) error {
	if s.Validate == nil {
		return nil
	}
	err := s.Validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return common.ValidationError(fe.Field(), fmt.Sprintf("failed on the %q rule", fe.Tag()))
	}
	return common.ValidationError("", err.Error())
}
