package report

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/catalog"
)

type stubStore struct {
	salesRevenue   decimal.Decimal
	invoiceRevenue decimal.Decimal
	expenses       decimal.Decimal
	salesUnits     []SoldUnit
	invoiceUnits   []SoldUnit
	calls          int
}

func (s *stubStore) SalesRevenue(context.Context, catalog.Querier, time.Time, time.Time) (decimal.Decimal, error) {
	s.calls++
	return s.salesRevenue, nil
}

func (s *stubStore) InvoiceRevenue(context.Context, catalog.Querier, time.Time, time.Time) (decimal.Decimal, error) {
	s.calls++
	return s.invoiceRevenue, nil
}

func (s *stubStore) Expenses(context.Context, catalog.Querier, time.Time, time.Time) (decimal.Decimal, error) {
	s.calls++
	return s.expenses, nil
}

func (s *stubStore) SoldUnitsFromSales(context.Context, catalog.Querier, time.Time, time.Time) ([]SoldUnit, error) {
	s.calls++
	return s.salesUnits, nil
}

func (s *stubStore) SoldUnitsFromInvoices(context.Context, catalog.Querier, time.Time, time.Time) ([]SoldUnit, error) {
	s.calls++
	return s.invoiceUnits, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestReconcileMarginBasis(t *testing.T) {
	units := []SoldUnit{
		{ProductName: "Kopi", Qty: 3, FinalUnitPrice: dec("450"), WholesaleCost: dec("300"), HasCost: true},
		{ProductName: "Teh", Qty: 2, FinalUnitPrice: dec("40"), WholesaleCost: dec("25"), HasCost: true},
	}
	result := Reconcile(units, dec("1430"), dec("1000"), zerolog.Nop())

	// (450-300)*3 + (40-25)*2 = 480
	if !result.NetProfit.Equal(dec("480")) {
		t.Fatalf("expected net profit 480, got %s", result.NetProfit)
	}
	if !result.AvailableFunds.Equal(dec("430")) {
		t.Fatalf("expected available funds 430, got %s", result.AvailableFunds)
	}
}

func TestReconcileMissingCostContributesZero(t *testing.T) {
	units := []SoldUnit{
		{ProductName: "Kopi", Qty: 3, FinalUnitPrice: dec("450"), WholesaleCost: dec("300"), HasCost: true},
		{ProductName: "Misteri", Qty: 5, FinalUnitPrice: dec("100")},
	}
	result := Reconcile(units, dec("1850"), dec("0"), zerolog.Nop())

	if !result.NetProfit.Equal(dec("450")) {
		t.Fatalf("unit without cost must contribute zero, got %s", result.NetProfit)
	}
}

func TestReconcileFiguresDiverge(t *testing.T) {
	// High revenue, heavy restocking: cash is negative while margin is positive.
	units := []SoldUnit{
		{ProductName: "Kopi", Qty: 10, FinalUnitPrice: dec("500"), WholesaleCost: dec("300"), HasCost: true},
	}
	result := Reconcile(units, dec("5000"), dec("8000"), zerolog.Nop())

	if !result.NetProfit.Equal(dec("2000")) {
		t.Fatalf("expected net profit 2000, got %s", result.NetProfit)
	}
	if !result.AvailableFunds.Equal(dec("-3000")) {
		t.Fatalf("expected available funds -3000, got %s", result.AvailableFunds)
	}
}

func newSummaryService(t *testing.T, store *stubStore) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	return &Service{
		Store:         store,
		R:             client,
		TTL:           time.Minute,
		CurrencyLabel: "Ks",
		Now:           func() time.Time { return fixed },
		Log:           zerolog.Nop(),
	}
}

func TestSummaryCombined(t *testing.T) {
	store := &stubStore{
		salesRevenue:   dec("1000"),
		invoiceRevenue: dec("500.5"),
		expenses:       dec("300"),
		salesUnits: []SoldUnit{
			{ProductName: "Kopi", Qty: 2, FinalUnitPrice: dec("500"), WholesaleCost: dec("300"), HasCost: true},
		},
	}
	svc := newSummaryService(t, store)

	result, err := svc.Summary(context.Background(), time.Time{}, time.Time{}, ModeCombined)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !result.TotalRevenue.Equal(dec("1500.5")) {
		t.Fatalf("expected revenue 1500.5, got %s", result.TotalRevenue)
	}
	if !result.AvailableFunds.Equal(dec("1200.5")) {
		t.Fatalf("expected available funds 1200.5, got %s", result.AvailableFunds)
	}
	if result.Formatted.TotalRevenue != "1500.5 Ks" {
		t.Fatalf("unexpected formatted revenue %q", result.Formatted.TotalRevenue)
	}
	if result.Formatted.TotalExpenses != "300 Ks" {
		t.Fatalf("unexpected formatted expenses %q", result.Formatted.TotalExpenses)
	}
}

func TestSummaryUsesCache(t *testing.T) {
	store := &stubStore{salesRevenue: dec("100")}
	svc := newSummaryService(t, store)

	if _, err := svc.Summary(context.Background(), time.Time{}, time.Time{}, ModeSales); err != nil {
		t.Fatalf("first summary: %v", err)
	}
	first := store.calls
	if _, err := svc.Summary(context.Background(), time.Time{}, time.Time{}, ModeSales); err != nil {
		t.Fatalf("second summary: %v", err)
	}
	if store.calls != first {
		t.Fatalf("second read must come from cache, store calls went %d -> %d", first, store.calls)
	}
}

func TestSummaryRejectsInvertedWindow(t *testing.T) {
	svc := newSummaryService(t, &stubStore{})

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Summary(context.Background(), from, to, ModeSales); err == nil {
		t.Fatal("expected error for inverted window")
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		raw  string
		want Mode
		ok   bool
	}{
		{"", ModeCombined, true},
		{"sales", ModeSales, true},
		{"invoices", ModeInvoices, true},
		{"combined", ModeCombined, true},
		{"weekly", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.raw)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseMode(%q) = %v, %v", tc.raw, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseMode(%q) should fail", tc.raw)
		}
	}
}
