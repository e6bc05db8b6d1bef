package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/ledger"
)

type stubStore struct {
	products      map[uuid.UUID]Product
	materials     map[uuid.UUID]RawMaterial
	lowStockCalls int
}

func newStubStore() *stubStore {
	return &stubStore{
		products:  map[uuid.UUID]Product{},
		materials: map[uuid.UUID]RawMaterial{},
	}
}

func (s *stubStore) InsertProduct(_ context.Context, _ Querier, p Product) error {
	s.products[p.ID] = p
	return nil
}

func (s *stubStore) UpdateProduct(_ context.Context, _ Querier, p Product) error {
	if _, ok := s.products[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	s.products[p.ID] = p
	return nil
}

func (s *stubStore) GetProduct(_ context.Context, _ Querier, id uuid.UUID) (Product, error) {
	p, ok := s.products[id]
	if !ok {
		return Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubStore) ListProducts(_ context.Context, _ Querier, _ string, _, _ int) ([]Product, int64, error) {
	var items []Product
	for _, p := range s.products {
		items = append(items, p)
	}
	return items, int64(len(items)), nil
}

func (s *stubStore) ListLowStockProducts(_ context.Context, _ Querier) ([]Product, error) {
	s.lowStockCalls++
	var items []Product
	for _, p := range s.products {
		if p.LowStock() {
			items = append(items, p)
		}
	}
	return items, nil
}

func (s *stubStore) InsertMaterial(_ context.Context, _ Querier, m RawMaterial) error {
	s.materials[m.ID] = m
	return nil
}

func (s *stubStore) UpdateMaterial(_ context.Context, _ Querier, m RawMaterial) error {
	if _, ok := s.materials[m.ID]; !ok {
		return pgx.ErrNoRows
	}
	s.materials[m.ID] = m
	return nil
}

func (s *stubStore) GetMaterial(_ context.Context, _ Querier, id uuid.UUID) (RawMaterial, error) {
	m, ok := s.materials[id]
	if !ok {
		return RawMaterial{}, pgx.ErrNoRows
	}
	return m, nil
}

func (s *stubStore) ListMaterials(_ context.Context, _ Querier, _ string, _, _ int) ([]RawMaterial, int64, error) {
	var items []RawMaterial
	for _, m := range s.materials {
		items = append(items, m)
	}
	return items, int64(len(items)), nil
}

func (s *stubStore) ListLowStockMaterials(_ context.Context, _ Querier) ([]RawMaterial, error) {
	var items []RawMaterial
	for _, m := range s.materials {
		if m.LowStock() {
			items = append(items, m)
		}
	}
	return items, nil
}

func (s *stubStore) UpdateMaterialCost(_ context.Context, _ Querier, id uuid.UUID, cost decimal.Decimal) error {
	m, ok := s.materials[id]
	if !ok {
		return pgx.ErrNoRows
	}
	m.UnitCost = cost
	s.materials[id] = m
	return nil
}

type stubLedgerStore struct {
	store     *stubStore
	mutations []ledger.Mutation
}

func (s *stubLedgerStore) ApplyDelta(_ context.Context, _ ledger.DB, target ledger.Target, delta decimal.Decimal) (ledger.StockRow, error) {
	if target.Kind == ledger.KindProduct {
		p, ok := s.store.products[target.ID]
		if !ok {
			return ledger.StockRow{}, pgx.ErrNoRows
		}
		next := p.CurrentStock + delta.IntPart()
		if next < 0 {
			return ledger.StockRow{}, pgx.ErrNoRows
		}
		p.CurrentStock = next
		s.store.products[target.ID] = p
		return ledger.StockRow{
			Name:      p.Name,
			Balance:   decimal.NewFromInt(p.CurrentStock),
			Threshold: decimal.NewFromInt(p.MinStockAlert),
		}, nil
	}
	m, ok := s.store.materials[target.ID]
	if !ok {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	next := m.CurrentStock.Add(delta)
	if next.IsNegative() {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	m.CurrentStock = next
	s.store.materials[target.ID] = m
	return ledger.StockRow{Name: m.Name, Balance: m.CurrentStock, Threshold: m.MinStockAlert}, nil
}

func (s *stubLedgerStore) ReadBalance(_ context.Context, _ ledger.DB, target ledger.Target) (ledger.StockRow, error) {
	if target.Kind == ledger.KindProduct {
		p, ok := s.store.products[target.ID]
		if !ok {
			return ledger.StockRow{}, pgx.ErrNoRows
		}
		return ledger.StockRow{
			Name:      p.Name,
			Balance:   decimal.NewFromInt(p.CurrentStock),
			Threshold: decimal.NewFromInt(p.MinStockAlert),
		}, nil
	}
	m, ok := s.store.materials[target.ID]
	if !ok {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	return ledger.StockRow{Name: m.Name, Balance: m.CurrentStock, Threshold: m.MinStockAlert}, nil
}

func (s *stubLedgerStore) AppendMutation(_ context.Context, _ ledger.DB, m ledger.Mutation, _ decimal.Decimal) error {
	s.mutations = append(s.mutations, m)
	return nil
}

func newTestService(t *testing.T, store *stubStore) (*Service, *stubLedgerStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ledgerStore := &stubLedgerStore{store: store}
	svc := &Service{
		Store:                store,
		Ledger:               &ledger.Service{Store: ledgerStore, Log: zerolog.Nop()},
		Cache:                NewCache(client, time.Minute),
		Validate:             validator.New(),
		Log:                  zerolog.Nop(),
		DefaultMinStockAlert: 5,
	}
	return svc, ledgerStore, mr
}

func TestCreateProductDefaultsThreshold(t *testing.T) {
	store := newStubStore()
	svc, _, _ := newTestService(t, store)

	p, err := svc.CreateProduct(context.Background(), ProductInput{
		Name:        "Kopi Sachet",
		RetailPrice: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), p.MinStockAlert)
	require.Equal(t, "Kopi Sachet", store.products[p.ID].Name)
}

func TestCreateProductRejectsNegativePrice(t *testing.T) {
	svc, _, _ := newTestService(t, newStubStore())

	_, err := svc.CreateProduct(context.Background(), ProductInput{
		Name:        "Broken",
		RetailPrice: decimal.NewFromInt(-1),
	})
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestCreateProductRequiresName(t *testing.T) {
	svc, _, _ := newTestService(t, newStubStore())

	_, err := svc.CreateProduct(context.Background(), ProductInput{})
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestLowStockUsesCache(t *testing.T) {
	store := newStubStore()
	svc, _, _ := newTestService(t, store)

	low := Product{ID: uuid.New(), Name: "Teh", CurrentStock: 1, MinStockAlert: 3}
	store.products[low.ID] = low

	first, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Products, 1)

	second, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, second.Products, 1)
	require.Equal(t, 1, store.lowStockCalls, "second read must come from cache")
}

func TestCorrectProductStock(t *testing.T) {
	store := newStubStore()
	svc, ledgerStore, mr := newTestService(t, store)

	p := Product{ID: uuid.New(), Name: "Roti", CurrentStock: 10, MinStockAlert: 2}
	store.products[p.ID] = p
	mr.Set("catalog:lowstock", "{}")

	balance, err := svc.CorrectProductStock(context.Background(), p.ID,
		StockCorrectionInput{Delta: decimal.NewFromInt(-3), Note: "shelf recount"}, "owner-1")
	require.NoError(t, err)
	require.True(t, balance.Current.Equal(decimal.NewFromInt(7)))

	require.Len(t, ledgerStore.mutations, 1)
	require.Equal(t, ledger.CauseAdjustment, ledgerStore.mutations[0].Cause)
	require.Equal(t, "owner-1", ledgerStore.mutations[0].Actor)
	require.False(t, mr.Exists("catalog:lowstock"), "write must invalidate the low stock cache")
}

func TestCorrectProductStockRejectsOverdraw(t *testing.T) {
	store := newStubStore()
	svc, _, _ := newTestService(t, store)

	p := Product{ID: uuid.New(), Name: "Roti", CurrentStock: 2, MinStockAlert: 1}
	store.products[p.ID] = p

	_, err := svc.CorrectProductStock(context.Background(), p.ID,
		StockCorrectionInput{Delta: decimal.NewFromInt(-5)}, "owner-1")
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInsufficientStock, appErr.Code)
	require.Equal(t, int64(2), store.products[p.ID].CurrentStock)
}
