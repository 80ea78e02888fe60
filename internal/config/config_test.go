package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[api]
market_limit = 50
category = "Crypto"
cache_ttl = "5m"

[schedule]
submit_delay = "2s"

[sizing]
min_confidence = 0.6
max_stake = 10

[revote]
mode = "deadline-window"
deadline_window = "12h"

[analyst]
provider = "anthropic"
model = "claude-sonnet-4"
key_env = "ANTHROPIC_API_KEY"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.MarketLimit != 50 || cfg.API.Category != "Crypto" {
		t.Errorf("api section not applied: %+v", cfg.API)
	}
	if cfg.API.CacheTTL.Duration != 5*time.Minute {
		t.Errorf("cache_ttl = %v, want 5m", cfg.API.CacheTTL.Duration)
	}
	if cfg.Schedule.SubmitDelay.Duration != 2*time.Second {
		t.Errorf("submit_delay = %v, want 2s", cfg.Schedule.SubmitDelay.Duration)
	}
	if cfg.Sizing.MinConfidence != 0.6 || cfg.Sizing.MaxStake != 10 {
		t.Errorf("sizing section not applied: %+v", cfg.Sizing)
	}
	if cfg.Revote.Mode != "deadline-window" || cfg.Revote.DeadlineWindow.Duration != 12*time.Hour {
		t.Errorf("revote section not applied: %+v", cfg.Revote)
	}
	if cfg.Analyst.Provider != "anthropic" {
		t.Errorf("analyst provider = %s, want anthropic", cfg.Analyst.Provider)
	}

	// Untouched sections keep their defaults.
	if cfg.Schedule.CycleInterval.Duration != 30*time.Minute {
		t.Errorf("cycle_interval = %v, want default 30m", cfg.Schedule.CycleInterval.Duration)
	}
	if !cfg.Sizing.ImplicitNoBets {
		t.Error("implicit_no_bets should default to true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		toml string
	}{
		{"bad revote mode", "[revote]\nmode = \"sometimes\"\n"},
		{"max_stake zero", "[sizing]\nmax_stake = 0\n"},
		{"max_stake too big", "[sizing]\nmax_stake = 500\n"},
		{"min_confidence above one", "[sizing]\nmin_confidence = 1.5\n"},
		{"market_limit above cap", "[api]\nmarket_limit = 500\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, c.toml)); err == nil {
				t.Errorf("expected validation error for %s", c.name)
			}
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("ORACLE_AGENT_ID", "3fa85f64-5717-4562-b3fc-2c963f66afa6")
	t.Setenv("ORACLE_API_KEY", "ap_test_key")

	creds, err := LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if creds.AgentID != "3fa85f64-5717-4562-b3fc-2c963f66afa6" || creds.APIKey != "ap_test_key" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestLoadCredentials_RejectsNonUUID(t *testing.T) {
	t.Setenv("ORACLE_AGENT_ID", "not-a-uuid")
	t.Setenv("ORACLE_API_KEY", "ap_test_key")

	if _, err := LoadCredentials(); err == nil {
		t.Error("expected error for non-UUID agent id")
	}
}

func TestLoadCredentials_RequiresBoth(t *testing.T) {
	t.Setenv("ORACLE_AGENT_ID", "3fa85f64-5717-4562-b3fc-2c963f66afa6")
	t.Setenv("ORACLE_API_KEY", "")

	if _, err := LoadCredentials(); err == nil {
		t.Error("expected error when the api key is missing")
	}
}
