package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := NewViper()
	v.Set("trigger.shared_secret", "trigger-secret")
	v.Set("auth.signing_secret", "signing-secret")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "terrafit.db" {
		t.Fatalf("unexpected database path %s", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.StatsCacheTTL != 10*time.Minute {
		t.Fatalf("unexpected stats cache ttl %v", cfg.StatsCacheTTL)
	}
	if cfg.GroupTimeout != 30*time.Second {
		t.Fatalf("unexpected group timeout %v", cfg.GroupTimeout)
	}
	if cfg.MaxConcurrentGroups != 4 {
		t.Fatalf("unexpected concurrency %d", cfg.MaxConcurrentGroups)
	}
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	v := NewViper()
	v.Set("auth.signing_secret", "signing-secret")
	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "trigger.shared_secret") {
		t.Fatalf("expected trigger secret error, got %v", err)
	}

	v = NewViper()
	v.Set("trigger.shared_secret", "trigger-secret")
	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "auth.signing_secret") {
		t.Fatalf("expected signing secret error, got %v", err)
	}
}

func TestLoadRejectsNonPositiveConcurrency(t *testing.T) {
	v := NewViper()
	v.Set("trigger.shared_secret", "trigger-secret")
	v.Set("auth.signing_secret", "signing-secret")
	v.Set("engine.max_concurrent_groups", 0)

	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "max_concurrent_groups") {
		t.Fatalf("expected concurrency error, got %v", err)
	}
}
