package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("OWNER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.OwnerPIN != "" {
		t.Fatalf("expected empty OWNER_PIN when unset, got %q", cfg.OwnerPIN)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REGISTER_STATUS_TTL_SECONDS", "")
	t.Setenv("RECEIVABLE_DUE_DAYS", "")
	t.Setenv("OWNER_MAX_DISCOUNT_PERCENT", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.RegisterStatusTTLSeconds != 15 {
		t.Fatalf("expected default status TTL 15, got %d", cfg.RegisterStatusTTLSeconds)
	}
	if cfg.ReceivableDueDays != 30 {
		t.Fatalf("expected default due days 30, got %d", cfg.ReceivableDueDays)
	}
	if !cfg.OwnerMaxDiscountPercent.IsPositive() {
		t.Fatalf("expected positive owner max discount, got %s", cfg.OwnerMaxDiscountPercent)
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	t.Setenv("REGISTER_STATUS_TTL_SECONDS", "-5")
	t.Setenv("RECEIVABLE_DUE_DAYS", "abc")
	t.Setenv("OWNER_MAX_DISCOUNT_PERCENT", "150")

	cfg := Load()
	if cfg.RegisterStatusTTLSeconds != 15 {
		t.Fatalf("expected TTL fallback 15, got %d", cfg.RegisterStatusTTLSeconds)
	}
	if cfg.ReceivableDueDays != 30 {
		t.Fatalf("expected due days fallback 30, got %d", cfg.ReceivableDueDays)
	}
	if cfg.OwnerMaxDiscountPercent.String() != "100" {
		t.Fatalf("expected owner max discount clamp to 100, got %s", cfg.OwnerMaxDiscountPercent)
	}
}

func TestAddress(t *testing.T) {
	cfg := Config{Port: "9090"}
	if cfg.Address() != ":9090" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}
