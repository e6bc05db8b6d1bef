package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-warung/internal/catalog"
	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/ledger"
	"github.com/noah-isme/backend-warung/internal/lock"
)

type fakeTx struct {
	pgx.Tx
	committed bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error { return nil }

type fakePool struct {
	tx *fakeTx
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	p.tx = &fakeTx{}
	return p.tx, nil
}

type fakeMaterials struct {
	materials map[uuid.UUID]catalog.RawMaterial
	mutations []ledger.Mutation
}

func (f *fakeMaterials) GetMaterial(_ context.Context, _ catalog.Querier, id uuid.UUID) (catalog.RawMaterial, error) {
	m, ok := f.materials[id]
	if !ok {
		return catalog.RawMaterial{}, pgx.ErrNoRows
	}
	return m, nil
}

func (f *fakeMaterials) UpdateMaterialCost(_ context.Context, _ catalog.Querier, id uuid.UUID, cost decimal.Decimal) error {
	m, ok := f.materials[id]
	if !ok {
		return pgx.ErrNoRows
	}
	m.UnitCost = cost
	f.materials[id] = m
	return nil
}

func (f *fakeMaterials) ApplyDelta(_ context.Context, _ ledger.DB, target ledger.Target, delta decimal.Decimal) (ledger.StockRow, error) {
	m, ok := f.materials[target.ID]
	if !ok {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	next := m.CurrentStock.Add(delta)
	if next.IsNegative() {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	m.CurrentStock = next
	f.materials[target.ID] = m
	return ledger.StockRow{Name: m.Name, Balance: next, Threshold: m.MinStockAlert}, nil
}

func (f *fakeMaterials) ReadBalance(_ context.Context, _ ledger.DB, target ledger.Target) (ledger.StockRow, error) {
	m, ok := f.materials[target.ID]
	if !ok {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	return ledger.StockRow{Name: m.Name, Balance: m.CurrentStock, Threshold: m.MinStockAlert}, nil
}

func (f *fakeMaterials) AppendMutation(_ context.Context, _ ledger.DB, m ledger.Mutation, _ decimal.Decimal) error {
	f.mutations = append(f.mutations, m)
	return nil
}

type recordingStore struct {
	purchases []Purchase
	usages    []Usage
}

func (s *recordingStore) InsertPurchase(_ context.Context, _ catalog.Querier, p Purchase) error {
	s.purchases = append(s.purchases, p)
	return nil
}

func (s *recordingStore) ListPurchases(_ context.Context, _ catalog.Querier, _ ListFilter) ([]Purchase, int64, error) {
	return s.purchases, int64(len(s.purchases)), nil
}

func (s *recordingStore) InsertUsage(_ context.Context, _ catalog.Querier, u Usage) error {
	s.usages = append(s.usages, u)
	return nil
}

func (s *recordingStore) ListUsages(_ context.Context, _ catalog.Querier, _ ListFilter) ([]Usage, int64, error) {
	return s.usages, int64(len(s.usages)), nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newProcurementService(t *testing.T, materials *fakeMaterials) (*Service, *recordingStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &recordingStore{}
	svc := &Service{
		Pool:    &fakePool{},
		Store:   store,
		Catalog: materials,
		Ledger:  &ledger.Service{Store: materials, Log: zerolog.Nop()},
		Locker:  &lock.Locker{R: client, RetryBackoff: time.Millisecond},
		LockTTL: time.Second,
		Log:     zerolog.Nop(),
	}
	return svc, store
}

func TestRecordPurchase(t *testing.T) {
	id := uuid.New()
	materials := &fakeMaterials{materials: map[uuid.UUID]catalog.RawMaterial{
		id: {ID: id, Name: "Tepung", UnitCost: dec("1000"), CurrentStock: dec("3")},
	}}
	svc, store := newProcurementService(t, materials)

	p, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		MaterialID: id,
		Qty:        dec("2.5"),
		UnitCost:   dec("1200"),
	}, "owner-1")
	require.NoError(t, err)

	require.True(t, p.Total.Equal(dec("3000")))
	require.True(t, materials.materials[id].CurrentStock.Equal(dec("5.5")))
	require.True(t, materials.materials[id].UnitCost.Equal(dec("1200")), "last-purchase cost")
	require.Len(t, store.purchases, 1)

	require.Len(t, materials.mutations, 1)
	require.Equal(t, ledger.CausePurchase, materials.mutations[0].Cause)
	require.NotNil(t, materials.mutations[0].CostBasis)
	require.True(t, materials.mutations[0].CostBasis.Equal(dec("1200")))
}

func TestRecordUsageSnapshotsCostBasis(t *testing.T) {
	id := uuid.New()
	materials := &fakeMaterials{materials: map[uuid.UUID]catalog.RawMaterial{
		id: {ID: id, Name: "Gula", UnitCost: dec("800"), CurrentStock: dec("4")},
	}}
	svc, store := newProcurementService(t, materials)

	u, err := svc.RecordUsage(context.Background(), UsageInput{
		MaterialID: id,
		Qty:        dec("1.5"),
	}, "owner-1")
	require.NoError(t, err)

	require.True(t, u.CostBasis.Equal(dec("800")))
	require.True(t, u.Total.Equal(dec("1200")))
	require.True(t, materials.materials[id].CurrentStock.Equal(dec("2.5")))
	require.Len(t, store.usages, 1)

	require.Len(t, materials.mutations, 1)
	require.Equal(t, ledger.CauseUsage, materials.mutations[0].Cause)
	require.NotNil(t, materials.mutations[0].CostBasis)
	require.True(t, materials.mutations[0].CostBasis.Equal(dec("800")))
}

func TestRecordUsageInsufficientStock(t *testing.T) {
	id := uuid.New()
	materials := &fakeMaterials{materials: map[uuid.UUID]catalog.RawMaterial{
		id: {ID: id, Name: "Gula", UnitCost: dec("800"), CurrentStock: dec("1")},
	}}
	svc, store := newProcurementService(t, materials)

	_, err := svc.RecordUsage(context.Background(), UsageInput{
		MaterialID: id,
		Qty:        dec("2"),
	}, "owner-1")
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInsufficientStock, appErr.Code)
	require.Empty(t, store.usages)
	require.True(t, materials.materials[id].CurrentStock.Equal(dec("1")))
}

func TestRecordPurchaseValidation(t *testing.T) {
	svc, _ := newProcurementService(t, &fakeMaterials{materials: map[uuid.UUID]catalog.RawMaterial{}})

	_, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		MaterialID: uuid.New(),
		Qty:        dec("0"),
		UnitCost:   dec("100"),
	}, "owner-1")
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestRecordUsageUnknownMaterial(t *testing.T) {
	svc, _ := newProcurementService(t, &fakeMaterials{materials: map[uuid.UUID]catalog.RawMaterial{}})

	_, err := svc.RecordUsage(context.Background(), UsageInput{
		MaterialID: uuid.New(),
		Qty:        dec("1"),
	}, "owner-1")
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeNotFound, appErr.Code)
}
