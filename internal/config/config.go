package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

type Config struct {
	General  GeneralConfig  `toml:"general"`
	API      APIConfig      `toml:"api"`
	Schedule ScheduleConfig `toml:"schedule"`
	Sizing   SizingConfig   `toml:"sizing"`
	Revote   RevoteConfig   `toml:"revote"`
	Analyst  AnalystConfig  `toml:"analyst"`
}

type GeneralConfig struct {
	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`
}

type APIConfig struct {
	BaseURL     string   `toml:"base_url"`
	MarketLimit int      `toml:"market_limit"`
	Category    string   `toml:"category"`
	Pack        string   `toml:"pack"`
	Customer    string   `toml:"customer"`
	CacheTTL    Duration `toml:"cache_ttl"`
}

type ScheduleConfig struct {
	CycleInterval Duration `toml:"cycle_interval"`
	SubmitDelay   Duration `toml:"submit_delay"`
}

type SizingConfig struct {
	MinConfidence  float64 `toml:"min_confidence"`
	MaxStake       int     `toml:"max_stake"`
	ImplicitNoBets bool    `toml:"implicit_no_bets"`
}

type RevoteConfig struct {
	Mode           string   `toml:"mode"` // "never", "always" or "deadline-window"
	DeadlineWindow Duration `toml:"deadline_window"`
}

type AnalystConfig struct {
	Provider     string `toml:"provider"` // "openai", "anthropic", "gemini", "groq", "openrouter"
	Model        string `toml:"model"`
	KeyEnv       string `toml:"key_env"`
	MaxRationale int    `toml:"max_rationale"`
}

// Credentials holds the identity the agent authenticates with. Sourced from
// the environment, never from the config file.
type Credentials struct {
	AgentID string
	APIKey  string
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Revote.Mode {
	case "never", "always", "deadline-window":
	default:
		return fmt.Errorf("invalid revote mode %q", c.Revote.Mode)
	}
	if c.Sizing.MaxStake < 1 || c.Sizing.MaxStake > 100 {
		return fmt.Errorf("max_stake must be in [1, 100], got %d", c.Sizing.MaxStake)
	}
	if c.Sizing.MinConfidence < 0 || c.Sizing.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0, 1], got %f", c.Sizing.MinConfidence)
	}
	if c.API.MarketLimit < 1 || c.API.MarketLimit > 200 {
		return fmt.Errorf("market_limit must be in [1, 200], got %d", c.API.MarketLimit)
	}
	return nil
}

// LoadCredentials reads ORACLE_AGENT_ID and ORACLE_API_KEY from the
// environment. The agent id must be a UUID.
func LoadCredentials() (Credentials, error) {
	agentID := os.Getenv("ORACLE_AGENT_ID")
	apiKey := os.Getenv("ORACLE_API_KEY")
	if agentID == "" || apiKey == "" {
		return Credentials{}, fmt.Errorf("ORACLE_AGENT_ID and ORACLE_API_KEY must be set")
	}
	if _, err := uuid.Parse(agentID); err != nil {
		return Credentials{}, fmt.Errorf("ORACLE_AGENT_ID is not a valid UUID: %w", err)
	}
	return Credentials{AgentID: agentID, APIKey: apiKey}, nil
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DBPath:   "./data/oraclebot.db",
			LogLevel: "info",
		},
		API: APIConfig{
			BaseURL:     "https://sjtxbkmmicwmkqrmyqln.supabase.co/functions/v1",
			MarketLimit: 100,
			CacheTTL:    Duration{10 * time.Minute},
		},
		Schedule: ScheduleConfig{
			CycleInterval: Duration{30 * time.Minute},
			SubmitDelay:   Duration{1200 * time.Millisecond},
		},
		Sizing: SizingConfig{
			MinConfidence:  0.55,
			MaxStake:       20,
			ImplicitNoBets: true,
		},
		Revote: RevoteConfig{
			Mode:           "never",
			DeadlineWindow: Duration{24 * time.Hour},
		},
		Analyst: AnalystConfig{
			Provider:     "openai",
			Model:        "gpt-4o",
			KeyEnv:       "OPENAI_API_KEY",
			MaxRationale: 2000,
		},
	}
}
