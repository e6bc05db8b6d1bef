package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-warung/internal/catalog"
	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/money"
)

// Mode selects which document sources feed the summary.
type Mode string

const (
	ModeSales    Mode = "sales"
	ModeInvoices Mode = "invoices"
	ModeCombined Mode = "combined"
)

// ParseMode validates a raw mode string, defaulting to combined.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return ModeCombined, nil
	case ModeSales:
		return ModeSales, nil
	case ModeInvoices:
		return ModeInvoices, nil
	case ModeCombined:
		return ModeCombined, nil
	}
	return "", fmt.Errorf("unknown report mode %q", raw)
}

// Service provides cached access to profit summaries.
type Service struct {
	DB            catalog.Querier
	Store         Store
	R             *redis.Client
	TTL           time.Duration
	CurrencyLabel string
	Now           func() time.Time
	Log           zerolog.Logger
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Summary reconciles the window [from, to). Zero bounds default to the last
// thirty days ending now.
func (s *Service) Summary(ctx context.Context, from, to time.Time, mode Mode) (Result, error) {
	if s == nil || s.Store == nil {
		return Result{}, fmt.Errorf("report service not configured")
	}
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return Result{}, common.ValidationError("from", "window start must precede its end")
	}

	key := cacheKey("rp", "summary", string(mode), from.Format("2006-01-02"), to.Format("2006-01-02"))
	if result, ok := s.fromCache(ctx, key); ok {
		return result, nil
	}

	revenue := decimal.Zero
	expenses := decimal.Zero
	var units []SoldUnit

	if mode == ModeSales || mode == ModeCombined {
		salesRevenue, err := s.Store.SalesRevenue(ctx, s.DB, from, to)
		if err != nil {
			return Result{}, err
		}
		revenue = revenue.Add(salesRevenue)
		salesUnits, err := s.Store.SoldUnitsFromSales(ctx, s.DB, from, to)
		if err != nil {
			return Result{}, err
		}
		units = append(units, salesUnits...)
	}
	if mode == ModeInvoices || mode == ModeCombined {
		invoiceRevenue, err := s.Store.InvoiceRevenue(ctx, s.DB, from, to)
		if err != nil {
			return Result{}, err
		}
		revenue = revenue.Add(invoiceRevenue)
		invoiceUnits, err := s.Store.SoldUnitsFromInvoices(ctx, s.DB, from, to)
		if err != nil {
			return Result{}, err
		}
		units = append(units, invoiceUnits...)
	}

	purchaseExpenses, err := s.Store.Expenses(ctx, s.DB, from, to)
	if err != nil {
		return Result{}, err
	}
	expenses = expenses.Add(purchaseExpenses)

	result := Reconcile(units, revenue, expenses, s.Log)
	result.Formatted = Formatted{
		TotalRevenue:   money.Format(result.TotalRevenue, s.CurrencyLabel),
		TotalExpenses:  money.Format(result.TotalExpenses, s.CurrencyLabel),
		NetProfit:      money.Format(result.NetProfit, s.CurrencyLabel),
		AvailableFunds: money.Format(result.AvailableFunds, s.CurrencyLabel),
	}
	s.store(ctx, key, result)
	return result, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (Result, bool) {
	if s.R == nil || s.TTL <= 0 {
		return Result{}, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, false
	}
	return result, true
}

func (s *Service) store(ctx context.Context, key string, value Result) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
