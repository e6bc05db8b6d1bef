package sales

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

// ProductReader is the slice of the catalog store a sale needs.
type ProductReader interface {
	GetProduct(ctx context.Context, db catalog.Querier, id uuid.UUID) (catalog.Product, error)
}

// SaleInput is the request body for a quick sale.
type SaleInput struct {
	ProductID   uuid.UUID       `json:"productId" validate:"required"`
	Channel     string          `json:"channel"`
	Qty         int             `json:"qty" validate:"gt=0"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	DiscountAmt decimal.Decimal `json:"discountAmt"`
	Note        string          `json:"note" validate:"max=500"`
}

// Service commits and lists sales.
type Service struct {
	Pool     TxBeginner
	DB       catalog.Querier
	Store    Store
	Catalog  ProductReader
	Ledger   *ledger.Service
	Validate *validator.Validate
	Log      zerolog.Logger
}

// Create prices and commits one sale. The sale row and the stock decrement
// share a transaction; a failed decrement rolls the sale back entirely.
func (s *Service) Create(ctx context.Context, in SaleInput, actor string) (Sale, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				return Sale{}, common.ValidationError(fieldErrs[0].Field(),
					fmt.Sprintf("failed on the %q rule", fieldErrs[0].Tag()))
			}
			return Sale{}, common.ValidationError("", err.Error())
		}
	}
	channel, err := pricing.ParseChannel(in.Channel)
	if err != nil {
		return Sale{}, common.ValidationError("channel", err.Error())
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Sale{}, fmt.Errorf("begin sale tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	product, err := s.Catalog.GetProduct(ctx, tx, in.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, common.NotFoundError("product", err)
		}
		return Sale{}, fmt.Errorf("load product: %w", err)
	}

	line, err := pricing.BuildLine(product.ID, product.Name, product.Prices(), channel,
		in.Qty, in.DiscountPct, in.DiscountAmt)
	if err != nil {
		return Sale{}, err
	}

	sale := Sale{
		ID:             uuid.New(),
		ProductID:      product.ID,
		ProductName:    product.Name,
		Channel:        string(channel),
		Qty:            line.Qty,
		UnitPrice:      line.UnitPrice,
		DiscountPct:    line.DiscountPct,
		DiscountAmt:    line.DiscountAmt,
		FinalUnitPrice: line.FinalUnitPrice,
		Total:          line.LineTotal,
		ActorID:        actor,
		Note:           in.Note,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.Store.InsertSale(ctx, tx, sale); err != nil {
		return Sale{}, err
	}

	if _, err := s.Ledger.Adjust(ctx, tx, ledger.Mutation{
		Target: ledger.Target{Kind: ledger.KindProduct, ID: product.ID},
		Delta:  decimal.NewFromInt(int64(-in.Qty)),
		Cause:  ledger.CauseSale,
		Actor:  actor,
	}); err != nil {
		return Sale{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Sale{}, fmt.Errorf("commit sale: %w", err)
	}
	if obs.DocumentsCommittedTotal != nil {
		obs.DocumentsCommittedTotal.WithLabelValues("sale").Inc()
	}
	s.Log.Info().
		Str("sale_id", sale.ID.String()).
		Str("product_id", sale.ProductID.String()).
		Str("channel", sale.Channel).
		Int("qty", sale.Qty).
		Str("total", sale.Total.String()).
		Str("actor_id", actor).
		Msg("sale committed")
	return sale, nil
}

// List returns sales within the window, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Sale, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return s.Store.ListSales(ctx, s.DB, f)
}
