package invoice

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-warung/internal/catalog"
	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/ledger"
	"github.com/noah-isme/backend-warung/internal/pricing"
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

type fakeProducts struct {
	products map[uuid.UUID]catalog.Product
	stock    map[uuid.UUID]int64
}

func (f *fakeProducts) GetProduct(_ context.Context, _ catalog.Querier, id uuid.UUID) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeProducts) ApplyDelta(_ context.Context, _ ledger.DB, target ledger.Target, delta decimal.Decimal) (ledger.StockRow, error) {
	p, ok := f.products[target.ID]
	if !ok {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	next := f.stock[target.ID] + delta.IntPart()
	if next < 0 {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	f.stock[target.ID] = next
	return ledger.StockRow{Name: p.Name, Balance: decimal.NewFromInt(next)}, nil
}

func (f *fakeProducts) ReadBalance(_ context.Context, _ ledger.DB, target ledger.Target) (ledger.StockRow, error) {
	p, ok := f.products[target.ID]
	if !ok {
		return ledger.StockRow{}, pgx.ErrNoRows
	}
	return ledger.StockRow{Name: p.Name, Balance: decimal.NewFromInt(f.stock[target.ID])}, nil
}

func (f *fakeProducts) AppendMutation(context.Context, ledger.DB, ledger.Mutation, decimal.Decimal) error {
	return nil
}

type memStore struct {
	invoices map[uuid.UUID]Invoice
	lines    map[uuid.UUID][]pricing.Line
}

func newMemStore() *memStore {
	return &memStore{invoices: map[uuid.UUID]Invoice{}, lines: map[uuid.UUID][]pricing.Line{}}
}

func (s *memStore) InsertInvoice(_ context.Context, _ catalog.Querier, inv Invoice) error {
	header := inv
	header.Lines = nil
	s.invoices[inv.ID] = header
	return nil
}

func (s *memStore) InsertLines(_ context.Context, _ catalog.Querier, id uuid.UUID, lines []pricing.Line) error {
	s.lines[id] = append(s.lines[id], lines...)
	return nil
}

func (s *memStore) DeleteLines(_ context.Context, _ catalog.Querier, id uuid.UUID) error {
	delete(s.lines, id)
	return nil
}

func (s *memStore) GetInvoice(_ context.Context, _ catalog.Querier, id uuid.UUID) (Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, pgx.ErrNoRows
	}
	inv.Lines = s.lines[id]
	return inv, nil
}

func (s *memStore) UpdateHeader(_ context.Context, _ catalog.Querier, inv Invoice) error {
	if _, ok := s.invoices[inv.ID]; !ok {
		return pgx.ErrNoRows
	}
	header := inv
	header.Lines = nil
	s.invoices[inv.ID] = header
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, _ catalog.Querier, id uuid.UUID, status Status, payment PaymentStatus) error {
	inv, ok := s.invoices[id]
	if !ok {
		return pgx.ErrNoRows
	}
	inv.Status = status
	inv.PaymentStatus = payment
	s.invoices[id] = inv
	return nil
}

func (s *memStore) ListInvoices(_ context.Context, _ catalog.Querier, _ ListFilter) ([]Invoice, int64, error) {
	var items []Invoice
	for _, inv := range s.invoices {
		items = append(items, inv)
	}
	return items, int64(len(items)), nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newInvoiceService(products *fakeProducts) (*Service, *fakePool, *memStore) {
	pool := &fakePool{}
	store := newMemStore()
	svc := &Service{
		Pool:    pool,
		Store:   store,
		Catalog: products,
		Ledger:  &ledger.Service{Store: products, Log: zerolog.Nop()},
		Log:     zerolog.Nop(),
	}
	return svc, pool, store
}

func twoProducts() (*fakeProducts, uuid.UUID, uuid.UUID) {
	a, b := uuid.New(), uuid.New()
	return &fakeProducts{
		products: map[uuid.UUID]catalog.Product{
			a: {ID: a, Name: "Kopi", RetailPrice: dec("100"), ShopPrice: dec("80")},
			b: {ID: b, Name: "Teh", RetailPrice: dec("45"), ShopPrice: dec("40")},
		},
		stock: map[uuid.UUID]int64{a: 10, b: 10},
	}, a, b
}

func TestCreateInvoice(t *testing.T) {
	products, a, b := twoProducts()
	svc, pool, store := newInvoiceService(products)

	inv, err := svc.Create(context.Background(), InvoiceInput{
		Customer: "Warung Maju",
		Channel:  "retail",
		Lines: []LineInput{
			{ProductID: a, Qty: 2},
			{ProductID: b, Qty: 1},
		},
		DiscountPct: dec("10"),
		DiscountAmt: dec("5"),
	}, "owner-1")
	require.NoError(t, err)

	require.True(t, inv.Subtotal.Equal(dec("245")))
	require.True(t, inv.DiscountTotal.Equal(dec("29.5")))
	require.True(t, inv.Total.Equal(dec("215.5")))
	require.Equal(t, StatusPending, inv.Status)
	require.Equal(t, PaymentUnpaid, inv.PaymentStatus)

	require.True(t, pool.tx.committed)
	require.Equal(t, int64(8), products.stock[a])
	require.Equal(t, int64(9), products.stock[b])
	require.Len(t, store.lines[inv.ID], 2)
}

func TestCreateInvoiceInsufficientStock(t *testing.T) {
	products, a, b := twoProducts()
	products.stock[b] = 0
	svc, pool, _ := newInvoiceService(products)

	_, err := svc.Create(context.Background(), InvoiceInput{
		Customer: "Warung Maju",
		Channel:  "retail",
		Lines: []LineInput{
			{ProductID: a, Qty: 2},
			{ProductID: b, Qty: 1},
		},
	}, "owner-1")
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInsufficientStock, appErr.Code)
	require.False(t, pool.tx.committed)
}

func TestReplaceLines(t *testing.T) {
	products, a, b := twoProducts()
	svc, _, _ := newInvoiceService(products)

	inv, err := svc.Create(context.Background(), InvoiceInput{
		Customer: "Warung Maju",
		Channel:  "retail",
		Lines:    []LineInput{{ProductID: a, Qty: 4}},
	}, "owner-1")
	require.NoError(t, err)
	require.Equal(t, int64(6), products.stock[a])

	updated, err := svc.ReplaceLines(context.Background(), inv.ID, []LineInput{
		{ProductID: a, Qty: 1},
		{ProductID: b, Qty: 2},
	}, "owner-1")
	require.NoError(t, err)

	require.Equal(t, int64(9), products.stock[a], "old decrement reversed, new one applied")
	require.Equal(t, int64(8), products.stock[b])
	require.Len(t, updated.Lines, 2)
	require.True(t, updated.Subtotal.Equal(dec("190")))
}

func TestSwitchChannelRepricesEveryLine(t *testing.T) {
	products, a, _ := twoProducts()
	svc, _, _ := newInvoiceService(products)

	inv, err := svc.Create(context.Background(), InvoiceInput{
		Customer: "Warung Maju",
		Channel:  "retail",
		Lines:    []LineInput{{ProductID: a, Qty: 2}},
	}, "owner-1")
	require.NoError(t, err)
	require.True(t, inv.Total.Equal(dec("200")))

	switched, err := svc.SwitchChannel(context.Background(), inv.ID, "shop", "owner-1")
	require.NoError(t, err)
	require.Equal(t, "shop", switched.Channel)
	require.True(t, switched.Lines[0].UnitPrice.Equal(dec("80")))
	require.True(t, switched.Total.Equal(dec("160")))
	require.Equal(t, int64(8), products.stock[a], "channel switch must not touch stock")
}

func TestPatchStatus(t *testing.T) {
	products, a, _ := twoProducts()
	svc, _, _ := newInvoiceService(products)

	inv, err := svc.Create(context.Background(), InvoiceInput{
		Customer: "Warung Maju",
		Channel:  "retail",
		Lines:    []LineInput{{ProductID: a, Qty: 1}},
	}, "owner-1")
	require.NoError(t, err)

	paid := PaymentPaid
	done := StatusCompleted
	updated, err := svc.PatchStatus(context.Background(), inv.ID, StatusInput{Status: &done, PaymentStatus: &paid})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, updated.Status)
	require.Equal(t, PaymentPaid, updated.PaymentStatus)

	bogus := Status("shipped")
	_, err = svc.PatchStatus(context.Background(), inv.ID, StatusInput{Status: &bogus})
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestReplaceLinesRejectsEmptySet(t *testing.T) {
	products, _, _ := twoProducts()
	svc, _, _ := newInvoiceService(products)

	_, err := svc.ReplaceLines(context.Background(), uuid.New(), nil, "owner-1")
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeValidation, appErr.Code)
}
