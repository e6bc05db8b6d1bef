package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":     "postgres://localhost:5432/warung",
		"REDIS_URL":        "redis://localhost:6379",
		"CURRENCY_LABEL":   "",
		"REPORT_CACHE_TTL": "",
		"RATE_LIMIT_MAX":   "",
		"PORT":             "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CurrencyLabel != "Ks" {
		t.Fatalf("expected default currency label Ks, got %q", cfg.CurrencyLabel)
	}
	if cfg.ReportCacheTTL.Minutes() != 5 {
		t.Fatalf("expected 5m report cache TTL, got %s", cfg.ReportCacheTTL)
	}
	if cfg.RateLimitMax != 120 {
		t.Fatalf("expected rate limit 120, got %d", cfg.RateLimitMax)
	}
	if got := cfg.HTTPAddr(); got != ":8080" {
		t.Fatalf("expected :8080, got %q", got)
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
	})
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}
