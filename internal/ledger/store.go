package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DB is the subset of pgx shared by pgxpool.Pool and pgx.Tx. Services pass
// their open transaction so a document write and its stock adjustments commit
// or roll back together.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// StockRow is the balance state read back from storage.
type StockRow struct {
	Name      string
	Balance   decimal.Decimal
	Threshold decimal.Decimal
}

// Store performs the guarded balance updates and the mutation log writes.
type Store interface {
	// ApplyDelta executes the conditional update. It returns pgx.ErrNoRows
	// when the guard rejects the change or the target does not exist.
	ApplyDelta(ctx context.Context, db DB, target Target, delta decimal.Decimal) (StockRow, error)
	// ReadBalance fetches the current state without mutating it.
	ReadBalance(ctx context.Context, db DB, target Target) (StockRow, error)
	// AppendMutation records the applied change in the stock_mutations log.
	AppendMutation(ctx context.Context, db DB, m Mutation, newBalance decimal.Decimal) error
}

// SQLStore backs Store with single-statement conditional updates so two
// concurrent decrements can never jointly overdraw a row: the guard is
// evaluated by the database, not by a stale read in application code.
type SQLStore struct{}

const (
	applyProductDeltaSQL = `
UPDATE products
SET current_stock = current_stock + $2, updated_at = now()
WHERE id = $1 AND current_stock + $2 >= 0
RETURNING name, current_stock, min_stock_alert`

	applyMaterialDeltaSQL = `
UPDATE raw_materials
SET current_stock = current_stock + $2, updated_at = now()
WHERE id = $1 AND current_stock + $2 >= 0
RETURNING name, current_stock, min_stock_alert`

	readProductBalanceSQL  = `SELECT name, current_stock, min_stock_alert FROM products WHERE id = $1`
	readMaterialBalanceSQL = `SELECT name, current_stock, min_stock_alert FROM raw_materials WHERE id = $1`

	appendMutationSQL = `
INSERT INTO stock_mutations (id, target_kind, target_id, delta, new_balance, cause, actor_id, cost_basis, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

// ApplyDelta implements Store.
func (SQLStore) ApplyDelta(ctx context.Context, db DB, target Target, delta decimal.Decimal) (StockRow, error) {
	query := applyProductDeltaSQL
	// products store integer stock; pass the delta as int64 so the update
	// does not mix integer and numeric arithmetic
	var arg any = delta.IntPart()
	if target.Kind == KindMaterial {
		query = applyMaterialDeltaSQL
		arg = delta
	}
	var row StockRow
	err := db.QueryRow(ctx, query, target.ID, arg).Scan(&row.Name, &row.Balance, &row.Threshold)
	if err != nil {
		return StockRow{}, err
	}
	return row, nil
}

// ReadBalance implements Store.
func (SQLStore) ReadBalance(ctx context.Context, db DB, target Target) (StockRow, error) {
	query := readProductBalanceSQL
	if target.Kind == KindMaterial {
		query = readMaterialBalanceSQL
	}
	var row StockRow
	err := db.QueryRow(ctx, query, target.ID).Scan(&row.Name, &row.Balance, &row.Threshold)
	if err != nil {
		return StockRow{}, err
	}
	return row, nil
}

// AppendMutation implements Store.
func (SQLStore) AppendMutation(ctx context.Context, db DB, m Mutation, newBalance decimal.Decimal) error {
	var costBasis any
	if m.CostBasis != nil {
		costBasis = *m.CostBasis
	}
	_, err := db.Exec(ctx, appendMutationSQL,
		uuid.New(), string(m.Target.Kind), m.Target.ID, m.Delta, newBalance,
		string(m.Cause), m.Actor, costBasis, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append stock mutation: %w", err)
	}
	return nil
}
