package main

import (
	"testing"

	"modaloja/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected short AUTH_SECRET to be rejected")
	}

	err = validateSecurityConfig(config.Config{
		AuthSecret: "0123456789abcdef0123456789abcdef",
		OwnerPIN:   "123456",
	})
	if err == nil {
		t.Fatalf("expected sequential OWNER_PIN to be rejected")
	}

	err = validateSecurityConfig(config.Config{
		AuthSecret: "0123456789abcdef0123456789abcdef",
		OwnerPIN:   "777777",
	})
	if err == nil {
		t.Fatalf("expected all-same-digit OWNER_PIN to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret: "0123456789abcdef0123456789abcdef",
		OwnerPIN:   "739154",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigAllowsMissingPIN(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected config without OWNER_PIN to pass, got %v", err)
	}
}
