package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("AUTH_SERVICE_KEYS", "")
	t.Setenv("NOTIFY_KAFKA_BROKERS", "")
	t.Setenv("SETTLEMENT_STRICT_RECIPIENT_CHECK", "")
	t.Setenv("LIFECYCLE_MAX_ATTEMPTS", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lifecycle.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Lifecycle.MaxAttempts)
	}
	if cfg.Settlement.StrictRecipientCheck {
		t.Error("strict recipient check should default to false")
	}
	if cfg.Settlement.StakeAmount != 0.01 || cfg.Settlement.StakeCurrency != "ETH" {
		t.Errorf("stake defaults = %v %s", cfg.Settlement.StakeAmount, cfg.Settlement.StakeCurrency)
	}
	if len(cfg.Notification.KafkaBrokers) != 0 {
		t.Errorf("brokers = %v, want none", cfg.Notification.KafkaBrokers)
	}
	if cfg.Logger.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Logger.Format)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr = %s", cfg.App.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_SERVICE_KEYS", "cron=$2a$04$abc, webhook=$2a$04$def")
	t.Setenv("NOTIFY_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SETTLEMENT_STRICT_RECIPIENT_CHECK", "true")
	t.Setenv("SETTLEMENT_STAKE_AMOUNT", "0.5")
	t.Setenv("WORKER_NO_SHOW_GRACE_MINUTES", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Auth.ServiceKeys["cron"]; got != "$2a$04$abc" {
		t.Errorf("cron key = %q", got)
	}
	if got := cfg.Auth.ServiceKeys["webhook"]; got != "$2a$04$def" {
		t.Errorf("webhook key = %q", got)
	}
	if len(cfg.Notification.KafkaBrokers) != 2 || cfg.Notification.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Notification.KafkaBrokers)
	}
	if !cfg.Settlement.StrictRecipientCheck {
		t.Error("strict recipient check not applied")
	}
	if cfg.Settlement.StakeAmount != 0.5 {
		t.Errorf("stake amount = %v", cfg.Settlement.StakeAmount)
	}
	if cfg.Worker.NoShowGrace() != 30*time.Minute {
		t.Errorf("grace = %v", cfg.Worker.NoShowGrace())
	}
}

func TestLoadRejectsMalformedServiceKeys(t *testing.T) {
	t.Setenv("AUTH_SERVICE_KEYS", "cron")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed service keys")
	}
}
