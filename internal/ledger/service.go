package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/obs"
)

// Service applies stock mutations with invariant checks. All five causes use
// the same guarded path; there is no unguarded decrement anywhere in the
// engine.
type Service struct {
	Store Store
	Log   zerolog.Logger
	// OnLowStock fires after a mutation leaves the target at or below its
	// threshold. Advisory; must not block.
	OnLowStock func(ctx context.Context, target Target, balance Balance)
}

// Adjust applies one mutation against the provided db handle (pool or open
// transaction) and returns the post-mutation balance. Decrements exceeding
// the available stock are rejected with an InsufficientStockError and leave
// the balance untouched. Increments are unbounded.
func (s *Service) Adjust(ctx context.Context, db DB, m Mutation) (Balance, error) {
	if s == nil || s.Store == nil {
		return Balance{}, errors.New("ledger service not configured")
	}
	if m.Delta.IsZero() {
		return Balance{}, common.ValidationError("delta", "stock delta must not be zero")
	}
	if m.Target.Kind == KindProduct && !m.Delta.IsInteger() {
		return Balance{}, common.ValidationError("delta", "product stock changes must be whole units")
	}
	if m.Cause == "" {
		return Balance{}, common.ValidationError("cause", "mutation cause is required")
	}

	row, err := s.Store.ApplyDelta(ctx, db, m.Target, m.Delta)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.count(m, "error")
			return Balance{}, fmt.Errorf("apply stock delta: %w", err)
		}
		return Balance{}, s.classifyRejection(ctx, db, m)
	}

	if err := s.Store.AppendMutation(ctx, db, m, row.Balance); err != nil {
		s.count(m, "error")
		return Balance{}, err
	}

	balance := Balance{
		Name:      row.Name,
		Current:   row.Balance,
		Threshold: row.Threshold,
		LowStock:  row.Balance.LessThanOrEqual(row.Threshold),
	}
	s.count(m, "applied")
	if balance.LowStock && s.OnLowStock != nil {
		s.OnLowStock(ctx, m.Target, balance)
	}
	s.Log.Debug().
		Str("target_kind", string(m.Target.Kind)).
		Str("target_id", m.Target.ID.String()).
		Str("cause", string(m.Cause)).
		Str("delta", m.Delta.String()).
		Str("balance", balance.Current.String()).
		Bool("low_stock", balance.LowStock).
		Msg("stock adjusted")
	return balance, nil
}

// classifyRejection distinguishes a missing target from an overdraw. Both
// come back from the conditional update as "no rows".
func (s *Service) classifyRejection(ctx context.Context, db DB, m Mutation) error {
	row, err := s.Store.ReadBalance(ctx, db, m.Target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.count(m, "not_found")
			return common.NotFoundError(string(m.Target.Kind), err)
		}
		s.count(m, "error")
		return fmt.Errorf("read stock balance: %w", err)
	}
	stockErr := &InsufficientStockError{
		Target:    m.Target,
		Name:      row.Name,
		Requested: m.Delta.Neg(),
		Available: row.Balance,
	}
	s.count(m, "rejected")
	return &common.AppError{
		Code:       common.CodeInsufficientStock,
		Message:    stockErr.Error(),
		HTTPStatus: http.StatusConflict,
		Err:        stockErr,
	}
}

func (s *Service) count(m Mutation, result string) {
	if obs.StockMutationsTotal == nil {
		return
	}
	obs.StockMutationsTotal.WithLabelValues(string(m.Target.Kind), string(m.Cause), result).Inc()
}
