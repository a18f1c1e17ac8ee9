package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel         = "claude-sonnet-4-20250514"
	DefaultBaseURL       = "https://api.anthropic.com/v1"
	DefaultMaxTokens     = 2000
	DefaultMaxEmails     = 20
	DefaultQuery         = "is:unread"
	DefaultWatchSchedule = "0 7 * * *"
)

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Model    string         `json:"model"`
	Gmail    GmailConfig    `json:"gmail"`
	DBPath   string         `json:"dbPath"`
	VIPPath  string         `json:"vipPath"`
	Output   OutputConfig   `json:"output"`
	Watch    WatchConfig    `json:"watch"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type GmailConfig struct {
	CredentialsPath string `json:"credentialsPath"`
	TokenPath       string `json:"tokenPath"`
	Query           string `json:"query"`
	MaxResults      int    `json:"maxResults"`
}

type OutputConfig struct {
	BriefDir string `json:"briefDir"`
}

type WatchConfig struct {
	Schedule string `json:"schedule"`
}

func DefaultConfig() *Config {
	dir := ConfigDir()
	return &Config{
		Provider: ProviderConfig{
			BaseURL: DefaultBaseURL,
		},
		Model: DefaultModel,
		Gmail: GmailConfig{
			CredentialsPath: filepath.Join(dir, "credentials.json"),
			TokenPath:       filepath.Join(dir, "token.json"),
			Query:           DefaultQuery,
			MaxResults:      DefaultMaxEmails,
		},
		DBPath:  filepath.Join(dir, "tasks.db"),
		VIPPath: filepath.Join(dir, "vip_senders.yaml"),
		Output: OutputConfig{
			BriefDir: filepath.Join(dir, "briefs"),
		},
		Watch: WatchConfig{
			Schedule: DefaultWatchSchedule,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".mailbrief")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("MAILBRIEF_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("MAILBRIEF_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("MAILBRIEF_MODEL"); model != "" {
		cfg.Model = model
	}
	if path := os.Getenv("MAILBRIEF_DB_PATH"); path != "" {
		cfg.DBPath = path
	}
	if path := os.Getenv("MAILBRIEF_VIP_CONFIG"); path != "" {
		cfg.VIPPath = path
	}
	if path := os.Getenv("GOOGLE_CREDENTIALS_FILE"); path != "" {
		cfg.Gmail.CredentialsPath = path
	}
	if path := os.Getenv("GOOGLE_TOKEN_FILE"); path != "" {
		cfg.Gmail.TokenPath = path
	}
	if query := os.Getenv("GMAIL_DEFAULT_QUERY"); query != "" {
		cfg.Gmail.Query = query
	}
	if max := os.Getenv("MAILBRIEF_MAX_EMAILS"); max != "" {
		if parsed, err := strconv.Atoi(max); err == nil && parsed > 0 {
			cfg.Gmail.MaxResults = parsed
		}
	}
	if dir := os.Getenv("MAILBRIEF_BRIEF_DIR"); dir != "" {
		cfg.Output.BriefDir = dir
	}
	if sched := os.Getenv("MAILBRIEF_WATCH_SCHEDULE"); sched != "" {
		cfg.Watch.Schedule = sched
	}

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Gmail.Query == "" {
		cfg.Gmail.Query = DefaultQuery
	}
	if cfg.Gmail.MaxResults <= 0 {
		cfg.Gmail.MaxResults = DefaultMaxEmails
	}
	if cfg.Watch.Schedule == "" {
		cfg.Watch.Schedule = DefaultWatchSchedule
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
