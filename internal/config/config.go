package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NEWS_PIPELINE_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	openAIKeyEnv      = "OPENAI_API_KEY"
	finnhubKeyEnv     = "FINNHUB_API_KEY"
	trackerTokenEnv   = "TRACKER_TOKEN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds every parameter the pipeline needs.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	Sources       []SourceConfig      `yaml:"sources"`
	Collection    CollectionConfig    `yaml:"collection"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Publication   PublicationConfig   `yaml:"publication"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Notifications NotificationConfig  `yaml:"notifications"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	OutputDir     string              `yaml:"outputDir" validate:"required"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig describes a single news source. Sources are validated at
// collection time so that one malformed entry never blocks the others.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	Kind     string            `yaml:"kind"`
	URL      string            `yaml:"url"`
	Category string            `yaml:"category"`
	FeedID   string            `yaml:"feedId"`
	APIKey   string            `yaml:"apiKey"`
	Options  map[string]string `yaml:"options"`
}

// CollectionConfig controls the collector-level filters.
type CollectionConfig struct {
	MaxAge         time.Duration `yaml:"maxAge" validate:"gt=0"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	BlockedDomains []string      `yaml:"blockedDomains"`
}

// ExtractionConfig controls the two-tier body extraction.
type ExtractionConfig struct {
	Concurrency    int            `yaml:"concurrency" validate:"gte=1"`
	Timeout        time.Duration  `yaml:"timeout" validate:"gt=0"`
	MaxRetries     int            `yaml:"maxRetries" validate:"gte=0"`
	InitialBackoff time.Duration  `yaml:"initialBackoff" validate:"gte=0"`
	MinBodyLength  int            `yaml:"minBodyLength" validate:"gte=1"`
	PaywallDomains []string       `yaml:"paywallDomains"`
	Identity       IdentityConfig `yaml:"identity"`
	Fallback       FallbackConfig `yaml:"fallback"`
}

// IdentityConfig holds the client identity rotation pool.
type IdentityConfig struct {
	Enabled    bool     `yaml:"enabled"`
	UserAgents []string `yaml:"userAgents"`
}

// FallbackConfig controls the scriptable-browser fallback.
type FallbackConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Engine        string        `yaml:"engine" validate:"omitempty,oneof=chromium"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	MinTextLength int           `yaml:"minTextLength" validate:"gte=1"`
	Headless      bool          `yaml:"headless"`
	ExecPath      string        `yaml:"execPath"`
}

// SummarizationConfig selects and tunes the language-model backend.
type SummarizationConfig struct {
	Concurrency    int           `yaml:"concurrency" validate:"gte=1"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries     int           `yaml:"maxRetries" validate:"gte=0"`
	InitialBackoff time.Duration `yaml:"initialBackoff" validate:"gte=0"`
	Provider       string        `yaml:"provider" validate:"oneof=anthropic openai command"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"apiKey"`
	Endpoint       string        `yaml:"endpoint"`
	SystemPrompt   string        `yaml:"systemPrompt"`
	MaxTokens      int64         `yaml:"maxTokens"`
	Command        []string      `yaml:"command"`
}

// PublicationConfig holds the routing and deduplication tables.
type PublicationConfig struct {
	Concurrency     int               `yaml:"concurrency" validate:"gte=1"`
	DedupWindowDays int               `yaml:"dedupWindowDays" validate:"gte=1"`
	CategoryStatus  map[string]string `yaml:"categoryStatus"`
	DefaultStatus   string            `yaml:"defaultStatus" validate:"required"`
	StatusIDs       map[string]string `yaml:"statusIds"`
}

// StatusFor resolves a routing category to a destination status label.
func (p PublicationConfig) StatusFor(category string) string {
	if status, ok := p.CategoryStatus[strings.ToLower(strings.TrimSpace(category))]; ok && status != "" {
		return status
	}
	return p.DefaultStatus
}

// StatusID resolves a status label to the tracker's identifier, falling back to the label itself.
func (p PublicationConfig) StatusID(label string) string {
	if id, ok := p.StatusIDs[label]; ok && id != "" {
		return id
	}
	return label
}

// DedupWindow converts the lookback days into a duration.
func (p PublicationConfig) DedupWindow() time.Duration {
	return time.Duration(p.DedupWindowDays) * 24 * time.Hour
}

// TrackerConfig describes the destination project-tracking system.
type TrackerConfig struct {
	Backend string        `yaml:"backend" validate:"oneof=http postgres"`
	BaseURL string        `yaml:"baseUrl"`
	Token   string        `yaml:"token"`
	Project string        `yaml:"project"`
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines when watch mode runs the pipeline.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ResolvePath picks the explicit path, then the environment variable.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(configPathEnv)
}

// Load reads the YAML file over the defaults and applies environment overrides.
// An empty path yields the defaults; a path that cannot be read or parsed is an error.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		// Decoding over the defaults keeps unset keys and merges maps.
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the numeric limits and enumerations.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Tracker.DSN = v
	}

	if v := os.Getenv(trackerTokenEnv); v != "" {
		c.Tracker.Token = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	switch c.Summarization.Provider {
	case "anthropic":
		if v := os.Getenv(anthropicKeyEnv); v != "" && c.Summarization.APIKey == "" {
			c.Summarization.APIKey = v
		}
	case "openai":
		if v := os.Getenv(openAIKeyEnv); v != "" && c.Summarization.APIKey == "" {
			c.Summarization.APIKey = v
		}
	}

	if v := os.Getenv(finnhubKeyEnv); v != "" {
		for i := range c.Sources {
			if c.Sources[i].Kind == "market-data" && c.Sources[i].APIKey == "" {
				c.Sources[i].APIKey = v
			}
		}
	}
}

func (c *Config) normalize() {
	if len(c.Publication.CategoryStatus) > 0 {
		normalized := make(map[string]string, len(c.Publication.CategoryStatus))
		for k, v := range c.Publication.CategoryStatus {
			normalized[strings.ToLower(strings.TrimSpace(k))] = v
		}
		c.Publication.CategoryStatus = normalized
	}
	if c.Extraction.Fallback.Engine == "" {
		c.Extraction.Fallback.Engine = "chromium"
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Default returns the built-in configuration without reading any file.
func Default() Config {
	cfg := defaultConfig()
	cfg.bindTimezone()
	return cfg
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Sources: []SourceConfig{
			{
				Name:     "reuters-business",
				Kind:     "feed",
				URL:      "https://feeds.reuters.com/reuters/businessNews",
				Category: "markets",
				FeedID:   "reuters-business",
			},
		},
		Collection: CollectionConfig{
			MaxAge:  7 * 24 * time.Hour,
			Timeout: 30 * time.Second,
		},
		Extraction: ExtractionConfig{
			Concurrency:    5,
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MinBodyLength:  200,
			Identity: IdentityConfig{
				Enabled: true,
				UserAgents: []string{
					"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
					"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
					"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
				},
			},
			Fallback: FallbackConfig{
				Enabled:       true,
				Engine:        "chromium",
				Timeout:       45 * time.Second,
				MinTextLength: 200,
				Headless:      true,
			},
		},
		Summarization: SummarizationConfig{
			Concurrency:    3,
			Timeout:        120 * time.Second,
			MaxRetries:     3,
			InitialBackoff: time.Second,
			Provider:       "anthropic",
			Model:          "claude-haiku-4-5",
			SystemPrompt:   "You summarize financial news articles.",
			MaxTokens:      1024,
		},
		Publication: PublicationConfig{
			Concurrency:     1,
			DedupWindowDays: 7,
			CategoryStatus: map[string]string{
				"markets":  "Markets",
				"macro":    "Macro",
				"equities": "Equities",
			},
			DefaultStatus: "Inbox",
			StatusIDs:     map[string]string{},
		},
		Tracker: TrackerConfig{
			Backend: "http",
			BaseURL: "http://localhost:8080/api",
			Timeout: 20 * time.Second,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		OutputDir: "output",
	}
}
