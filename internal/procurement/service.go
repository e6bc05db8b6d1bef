package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/catalog"
	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/ledger"
	"github.com/noah-isme/backend-warung/internal/lock"
)

// TxBeginner starts transactions. Satisfied by pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MaterialStore is the slice of the catalog store procurement needs.
type MaterialStore interface {
	GetMaterial(ctx context.Context, db catalog.Querier, id uuid.UUID) (catalog.RawMaterial, error)
	UpdateMaterialCost(ctx context.Context, db catalog.Querier, id uuid.UUID, unitCost decimal.Decimal) error
}

// PurchaseInput is the request body for recording a purchase.
type PurchaseInput struct {
	MaterialID uuid.UUID       `json:"materialId"`
	Qty        decimal.Decimal `json:"qty"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	Date       time.Time       `json:"date"`
}

// UsageInput is the request body for recording production usage.
type UsageInput struct {
	MaterialID uuid.UUID       `json:"materialId"`
	Qty        decimal.Decimal `json:"qty"`
	Date       time.Time       `json:"date"`
}

// Service records purchases and usages.
type Service struct {
	Pool    TxBeginner
	DB      catalog.Querier
	Store   Store
	Catalog MaterialStore
	Ledger  *ledger.Service
	Locker  *lock.Locker
	LockTTL time.Duration
	Log     zerolog.Logger
}

// RecordPurchase commits a purchase row, the unbounded stock increase, and the
// last-purchase cost update in one transaction, serialized per material.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseInput, actor string) (Purchase, error) {
	if in.MaterialID == uuid.Nil {
		return Purchase{}, common.ValidationError("materialId", "material id is required")
	}
	if !in.Qty.IsPositive() {
		return Purchase{}, common.ValidationError("qty", "quantity must be positive")
	}
	if in.UnitCost.IsNegative() {
		return Purchase{}, common.ValidationError("unitCost", "unit cost must not be negative")
	}

	var purchase Purchase
	err := s.withMaterialLock(ctx, in.MaterialID, func(ctx context.Context) error {
		tx, err := s.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin purchase tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		material, err := s.getMaterial(ctx, tx, in.MaterialID)
		if err != nil {
			return err
		}

		date := in.Date
		if date.IsZero() {
			date = time.Now().UTC()
		}
		purchase = Purchase{
			ID:           uuid.New(),
			MaterialID:   material.ID,
			MaterialName: material.Name,
			Qty:          in.Qty,
			UnitCost:     in.UnitCost,
			Total:        in.Qty.Mul(in.UnitCost),
			Date:         date,
			ActorID:      actor,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.Store.InsertPurchase(ctx, tx, purchase); err != nil {
			return err
		}

		cost := in.UnitCost
		if _, err := s.Ledger.Adjust(ctx, tx, ledger.Mutation{
			Target:    ledger.Target{Kind: ledger.KindMaterial, ID: material.ID},
			Delta:     in.Qty,
			Cause:     ledger.CausePurchase,
			Actor:     actor,
			CostBasis: &cost,
		}); err != nil {
			return err
		}
		if err := s.Catalog.UpdateMaterialCost(ctx, tx, material.ID, in.UnitCost); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return Purchase{}, err
	}

	s.Log.Info().
		Str("purchase_id", purchase.ID.String()).
		Str("material_id", purchase.MaterialID.String()).
		Str("qty", purchase.Qty.String()).
		Str("unit_cost", purchase.UnitCost.String()).
		Str("actor_id", actor).
		Msg("purchase recorded")
	return purchase, nil
}

// RecordUsage commits a guarded stock decrement and a usage row snapshotting
// the material's current unit cost, serialized per material.
func (s *Service) RecordUsage(ctx context.Context, in UsageInput, actor string) (Usage, error) {
	if in.MaterialID == uuid.Nil {
		return Usage{}, common.ValidationError("materialId", "material id is required")
	}
	if !in.Qty.IsPositive() {
		return Usage{}, common.ValidationError("qty", "quantity must be positive")
	}

	var usage Usage
	err := s.withMaterialLock(ctx, in.MaterialID, func(ctx context.Context) error {
		tx, err := s.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin usage tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		material, err := s.getMaterial(ctx, tx, in.MaterialID)
		if err != nil {
			return err
		}

		cost := material.UnitCost
		if _, err := s.Ledger.Adjust(ctx, tx, ledger.Mutation{
			Target:    ledger.Target{Kind: ledger.KindMaterial, ID: material.ID},
			Delta:     in.Qty.Neg(),
			Cause:     ledger.CauseUsage,
			Actor:     actor,
			CostBasis: &cost,
		}); err != nil {
			return err
		}

		date := in.Date
		if date.IsZero() {
			date = time.Now().UTC()
		}
		usage = Usage{
			ID:           uuid.New(),
			MaterialID:   material.ID,
			MaterialName: material.Name,
			Qty:          in.Qty,
			CostBasis:    cost,
			Total:        in.Qty.Mul(cost),
			Date:         date,
			ActorID:      actor,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.Store.InsertUsage(ctx, tx, usage); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return Usage{}, err
	}

	s.Log.Info().
		Str("usage_id", usage.ID.String()).
		Str("material_id", usage.MaterialID.String()).
		Str("qty", usage.Qty.String()).
		Str("cost_basis", usage.CostBasis.String()).
		Str("actor_id", actor).
		Msg("usage recorded")
	return usage, nil
}

// ListPurchases returns purchases within the window, newest first.
func (s *Service) ListPurchases(ctx context.Context, f ListFilter) ([]Purchase, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return s.Store.ListPurchases(ctx, s.DB, f)
}

// ListUsages returns usages within the window, newest first.
func (s *Service) ListUsages(ctx context.Context, f ListFilter) ([]Usage, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return s.Store.ListUsages(ctx, s.DB, f)
}

func (s *Service) getMaterial(ctx context.Context, db catalog.Querier, id uuid.UUID) (catalog.RawMaterial, error) {
	material, err := s.Catalog.GetMaterial(ctx, db, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.RawMaterial{}, common.NotFoundError("material", err)
		}
		return catalog.RawMaterial{}, fmt.Errorf("load material: %w", err)
	}
	return material, nil
}

func (s *Service) withMaterialLock(ctx context.Context, id uuid.UUID, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return s.Locker.WithLock(ctx, lock.MaterialKey(id), ttl, fn)
}
