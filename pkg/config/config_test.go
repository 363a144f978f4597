package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Channel != "transactions" {
		t.Errorf("Channel = %q", cfg.Channel)
	}
	if cfg.AlertChannel != "fraud-alerts" {
		t.Errorf("AlertChannel = %q", cfg.AlertChannel)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("RetryMaxAttempts = %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryInitialInterval != time.Second || cfg.RetryMaxInterval != 10*time.Second {
		t.Errorf("retry intervals = %v/%v", cfg.RetryInitialInterval, cfg.RetryMaxInterval)
	}
	if cfg.RetryMultiplier != 2.0 {
		t.Errorf("RetryMultiplier = %v", cfg.RetryMultiplier)
	}
	if cfg.FraudThreshold != 0.5 {
		t.Errorf("FraudThreshold = %v", cfg.FraudThreshold)
	}
	if !cfg.HighValueCeiling.Equal(decimal.NewFromInt(900)) {
		t.Errorf("HighValueCeiling = %s", cfg.HighValueCeiling)
	}
	if cfg.ModelEnabled {
		t.Error("model must be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRANSACTIONS_CHANNEL", "txn-stream")
	t.Setenv("PARTITIONS", "8")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_INITIAL_INTERVAL", "250ms")
	t.Setenv("HIGH_VALUE_CEILING", "1500.50")
	t.Setenv("MODEL_ENABLED", "true")

	cfg := Load()

	if cfg.Channel != "txn-stream" || cfg.Partitions != 8 {
		t.Errorf("channel/partitions = %q/%d", cfg.Channel, cfg.Partitions)
	}
	if cfg.RetryMaxAttempts != 5 || cfg.RetryInitialInterval != 250*time.Millisecond {
		t.Errorf("retry overrides not applied")
	}
	if !cfg.HighValueCeiling.Equal(decimal.RequireFromString("1500.50")) {
		t.Errorf("HighValueCeiling = %s", cfg.HighValueCeiling)
	}
	if !cfg.ModelEnabled {
		t.Error("ModelEnabled override not applied")
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("PARTITIONS", "not-a-number")
	t.Setenv("HIGH_VALUE_CEILING", "many dollars")

	cfg := Load()
	if cfg.Partitions != 3 {
		t.Errorf("Partitions = %d, want default on parse failure", cfg.Partitions)
	}
	if !cfg.HighValueCeiling.Equal(decimal.NewFromInt(900)) {
		t.Errorf("HighValueCeiling = %s, want default", cfg.HighValueCeiling)
	}
}
