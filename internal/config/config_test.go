package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGIN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("DEFAULT_CREDIT_MAX_AMOUNT", "")
	t.Setenv("DEFAULT_CREDIT_MAX_TERM_DAYS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address = %q, want :8080", cfg.Address())
	}
	if cfg.DatabaseURL != "" || cfg.RedisAddr != "" {
		t.Fatalf("backends should default to empty, got %+v", cfg)
	}
	if !cfg.DefaultMaxAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("default max amount = %s, want 100", cfg.DefaultMaxAmount)
	}
	if cfg.DefaultMaxTerm != 15 {
		t.Fatalf("default max term = %d, want 15", cfg.DefaultMaxTerm)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/saleshub")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DEFAULT_CREDIT_MAX_AMOUNT", "250.50")
	t.Setenv("DEFAULT_CREDIT_MAX_TERM_DAYS", "30")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("port = %q, want 9090", cfg.Port)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("redis db = %d, want 3", cfg.RedisDB)
	}
	want, _ := decimal.NewFromString("250.50")
	if !cfg.DefaultMaxAmount.Equal(want) {
		t.Fatalf("max amount = %s, want 250.50", cfg.DefaultMaxAmount)
	}
	if cfg.DefaultMaxTerm != 30 {
		t.Fatalf("max term = %d, want 30", cfg.DefaultMaxTerm)
	}
}

func TestLoadRejectsBadCreditValues(t *testing.T) {
	t.Setenv("DEFAULT_CREDIT_MAX_AMOUNT", "-5")
	t.Setenv("DEFAULT_CREDIT_MAX_TERM_DAYS", "not-a-number")

	cfg := Load()
	if !cfg.DefaultMaxAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("max amount = %s, want fallback 100", cfg.DefaultMaxAmount)
	}
	if cfg.DefaultMaxTerm != 15 {
		t.Fatalf("max term = %d, want fallback 15", cfg.DefaultMaxTerm)
	}
}
