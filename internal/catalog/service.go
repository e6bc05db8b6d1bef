package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/ledger"
)

const lowStockCacheKey = "catalog:lowstock"

// ProductInput carries the writable fields of a product.
type ProductInput struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Unit           string          `json:"unit" validate:"max=30"`
	WholesalePrice decimal.Decimal `json:"wholesalePrice"`
	RetailPrice    decimal.Decimal `json:"retailPrice"`
	ShopPrice      decimal.Decimal `json:"shopPrice"`
	SellingPrice   decimal.Decimal `json:"sellingPrice"`
	InitialStock   int64           `json:"initialStock" validate:"gte=0"`
	MinStockAlert  *int64          `json:"minStockAlert" validate:"omitempty,gte=0"`
}

// MaterialInput carries the writable fields of a raw material.
type MaterialInput struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Unit          string           `json:"unit" validate:"max=30"`
	UnitCost      decimal.Decimal  `json:"unitCost"`
	InitialStock  decimal.Decimal  `json:"initialStock"`
	MinStockAlert *decimal.Decimal `json:"minStockAlert"`
}

// StockCorrectionInput is a manual count fix applied through the ledger.
type StockCorrectionInput struct {
	Delta decimal.Decimal `json:"delta"`
	Note  string          `json:"note" validate:"max=500"`
}

// LowStockReport groups everything at or below its alert threshold.
type LowStockReport struct {
	Products  []Product     `json:"products"`
	Materials []RawMaterial `json:"materials"`
}

// Service implements catalog operations.
type Service struct {
	DB                   Querier
	Store                Store
	Ledger               *ledger.Service
	Cache                *Cache
	Validate             *validator.Validate
	Log                  zerolog.Logger
	DefaultMinStockAlert int64
}

// CreateProduct registers a new product. Initial stock is set directly; it is
// the opening balance, not a mutation.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := s.validateInput(in); err != nil {
		return Product{}, err
	}
	if err := nonNegativePrices(map[string]decimal.Decimal{
		"wholesalePrice": in.WholesalePrice,
		"retailPrice":    in.RetailPrice,
		"shopPrice":      in.ShopPrice,
		"sellingPrice":   in.SellingPrice,
	}); err != nil {
		return Product{}, err
	}

	threshold := s.DefaultMinStockAlert
	if in.MinStockAlert != nil {
		threshold = *in.MinStockAlert
	}
	now := time.Now().UTC()
	p := Product{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(in.Name),
		Unit:           strings.TrimSpace(in.Unit),
		WholesalePrice: in.WholesalePrice,
		RetailPrice:    in.RetailPrice,
		ShopPrice:      in.ShopPrice,
		SellingPrice:   in.SellingPrice,
		CurrentStock:   in.InitialStock,
		MinStockAlert:  threshold,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.InsertProduct(ctx, s.DB, p); err != nil {
		return Product{}, err
	}
	s.Cache.Invalidate(ctx, lowStockCacheKey)
	s.Log.Info().Str("product_id", p.ID.String()).Str("name", p.Name).Msg("product created")
	return p, nil
}

// UpdateProduct rewrites the product's descriptive and pricing fields.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (Product, error) {
	if err := s.validateInput(in); err != nil {
		return Product{}, err
	}
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	current.Name = strings.TrimSpace(in.Name)
	current.Unit = strings.TrimSpace(in.Unit)
	current.WholesalePrice = in.WholesalePrice
	current.RetailPrice = in.RetailPrice
	current.ShopPrice = in.ShopPrice
	current.SellingPrice = in.SellingPrice
	if in.MinStockAlert != nil {
		current.MinStockAlert = *in.MinStockAlert
	}
	if err := s.Store.UpdateProduct(ctx, s.DB, current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, common.NotFoundError("product", err)
		}
		return Product{}, err
	}
	s.Cache.Invalidate(ctx, lowStockCacheKey)
	return s.GetProduct(ctx, id)
}

// GetProduct fetches one product by id.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := s.Store.GetProduct(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, common.NotFoundError("product", err)
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts returns a page of products, optionally filtered by name.
func (s *Service) ListProducts(ctx context.Context, search string, page common.Pagination) ([]Product, int64, error) {
	return s.Store.ListProducts(ctx, s.DB, strings.TrimSpace(search), page.PerPage, page.Offset())
}

// CreateMaterial registers a new raw material.
func (s *Service) CreateMaterial(ctx context.Context, in MaterialInput) (RawMaterial, error) {
	if err := s.validateInput(in); err != nil {
		return RawMaterial{}, err
	}
	if in.UnitCost.IsNegative() {
		return RawMaterial{}, common.ValidationError("unitCost", "unit cost must not be negative")
	}
	if in.InitialStock.IsNegative() {
		return RawMaterial{}, common.ValidationError("initialStock", "initial stock must not be negative")
	}

	threshold := decimal.NewFromInt(s.DefaultMinStockAlert)
	if in.MinStockAlert != nil {
		threshold = *in.MinStockAlert
	}
	now := time.Now().UTC()
	m := RawMaterial{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(in.Name),
		Unit:          strings.TrimSpace(in.Unit),
		UnitCost:      in.UnitCost,
		CurrentStock:  in.InitialStock,
		MinStockAlert: threshold,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.InsertMaterial(ctx, s.DB, m); err != nil {
		return RawMaterial{}, err
	}
	s.Cache.Invalidate(ctx, lowStockCacheKey)
	s.Log.Info().Str("material_id", m.ID.String()).Str("name", m.Name).Msg("material created")
	return m, nil
}

// UpdateMaterial rewrites descriptive fields and the alert threshold.
func (s *Service) UpdateMaterial(ctx context.Context, id uuid.UUID, in MaterialInput) (RawMaterial, error) {
	if err := s.validateInput(in); err != nil {
		return RawMaterial{}, err
	}
	current, err := s.GetMaterial(ctx, id)
	if err != nil {
		return RawMaterial{}, err
	}
	current.Name = strings.TrimSpace(in.Name)
	current.Unit = strings.TrimSpace(in.Unit)
	current.UnitCost = in.UnitCost
	if in.MinStockAlert != nil {
		current.MinStockAlert = *in.MinStockAlert
	}
	if err := s.Store.UpdateMaterial(ctx, s.DB, current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RawMaterial{}, common.NotFoundError("material", err)
		}
		return RawMaterial{}, err
	}
	s.Cache.Invalidate(ctx, lowStockCacheKey)
	return s.GetMaterial(ctx, id)
}

// GetMaterial fetches one raw material by id.
func (s *Service) GetMaterial(ctx context.Context, id uuid.UUID) (RawMaterial, error) {
	m, err := s.Store.GetMaterial(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RawMaterial{}, common.NotFoundError("material", err)
		}
		return RawMaterial{}, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

// ListMaterials returns a page of raw materials, optionally filtered by name.
func (s *Service) ListMaterials(ctx context.Context, search string, page common.Pagination) ([]RawMaterial, int64, error) {
	return s.Store.ListMaterials(ctx, s.DB, strings.TrimSpace(search), page.PerPage, page.Offset())
}

// LowStock lists everything at or below its alert threshold. The result is
// cached briefly since dashboards poll it.
func (s *Service) LowStock(ctx context.Context) (LowStockReport, error) {
	var report LowStockReport
	if hit, err := s.Cache.GetJSON(ctx, lowStockCacheKey, &report); err != nil {
		s.Log.Warn().Err(err).Msg("low stock cache read failed")
	} else if hit {
		return report, nil
	}

	products, err := s.Store.ListLowStockProducts(ctx, s.DB)
	if err != nil {
		return LowStockReport{}, err
	}
	materials, err := s.Store.ListLowStockMaterials(ctx, s.DB)
	if err != nil {
		return LowStockReport{}, err
	}
	report = LowStockReport{Products: products, Materials: materials}
	if err := s.Cache.SetJSON(ctx, lowStockCacheKey, report); err != nil {
		s.Log.Warn().Err(err).Msg("low stock cache write failed")
	}
	return report, nil
}

// CorrectProductStock applies a manual count fix through the ledger.
func (s *Service) CorrectProductStock(ctx context.Context, id uuid.UUID, in StockCorrectionInput, actor string) (ledger.Balance, error) {
	return s.correctStock(ctx, ledger.Target{Kind: ledger.KindProduct, ID: id}, in, actor)
}

// CorrectMaterialStock applies a manual count fix through the ledger.
func (s *Service) CorrectMaterialStock(ctx context.Context, id uuid.UUID, in StockCorrectionInput, actor string) (ledger.Balance, error) {
	return s.correctStock(ctx, ledger.Target{Kind: ledger.KindMaterial, ID: id}, in, actor)
}

func (s *Service) correctStock(ctx context.Context, target ledger.Target, in StockCorrectionInput, actor string) (ledger.Balance, error) {
	balance, err := s.Ledger.Adjust(ctx, s.DB, ledger.Mutation{
		Target: target,
		Delta:  in.Delta,
		Cause:  ledger.CauseAdjustment,
		Actor:  actor,
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	s.Cache.Invalidate(ctx, lowStockCacheKey)
	s.Log.Info().
		Str("target_kind", string(target.Kind)).
		Str("target_id", target.ID.String()).
		Str("delta", in.Delta.String()).
		Str("actor_id", actor).
		Str("note", in.Note).
		Msg("stock corrected")
	return balance, nil
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

func nonNegativePrices(prices map[string]decimal.Decimal) error {
	for field, price := range prices {
		if price.IsNegative() {
			return common.ValidationError(field, "price must not be negative")
		}
	}
	return nil
}
