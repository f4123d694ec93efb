package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"FeedsImporter/internal/domain"
)

const (
	configPathEnv     = "FEEDS_IMPORTER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Processor     ProcessorConfig    `yaml:"processor"`
	Source        SourceConfig       `yaml:"source"`
	Notifications NotificationConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig    `yaml:"telemetry"`
}

// LoggingConfig selects the slog level and handler ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig names the database/sql driver ("postgres" or "sqlite") and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ProcessorConfig is one import processor: where items go and how they are mapped.
type ProcessorConfig struct {
	ID            string               `yaml:"id"`
	EntityType    string               `yaml:"entityType"`
	Bundle        string               `yaml:"bundle"`
	UpdateMode    string               `yaml:"updateMode"`
	SkipHashCheck bool                 `yaml:"skipHashCheck"`
	PageSize      int                  `yaml:"pageSize"`
	Authorize     bool                 `yaml:"authorize"`
	Fields        []FieldConfig        `yaml:"fields"`
	Mappings      []domain.MappingRule `yaml:"mappings"`
}

// FieldConfig advertises a record field as a mapping target.
type FieldConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Format is "", "text", "html" or "list".
	Format      string `yaml:"format"`
	Cardinality int    `yaml:"cardinality"`
	Unique      bool   `yaml:"unique"`
	Required    bool   `yaml:"required"`
	RealTarget  string `yaml:"realTarget"`
}

// SourceConfig tells the CLI where listing pages come from and how to cut them into items.
type SourceConfig struct {
	URL string `yaml:"url"`
	// Preset names a built-in listing layout; "arxiv" is the only one.
	Preset  string         `yaml:"preset"`
	Listing *ListingConfig `yaml:"listing"`
}

// ListingConfig describes a custom HTML listing layout.
type ListingConfig struct {
	Item   string                  `yaml:"item"`
	Paired bool                    `yaml:"paired"`
	Base   string                  `yaml:"base"`
	Key    string                  `yaml:"key"`
	Fields map[string]ListingField `yaml:"fields"`
}

// ListingField extracts one item field from a listing entry.
type ListingField struct {
	Selector   string `yaml:"selector"`
	Attr       string `yaml:"attr"`
	HTML       bool   `yaml:"html"`
	Multiple   bool   `yaml:"multiple"`
	TrimPrefix string `yaml:"trimPrefix"`
	Format     string `yaml:"format"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// TelemetryConfig toggles the stdout metrics exporter.
type TelemetryConfig struct {
	Stdout          bool `yaml:"stdout"`
	IntervalSeconds int  `yaml:"intervalSeconds"`
}

// Load reads the YAML file at path, or the one named by FEEDS_IMPORTER_CONFIG
// when path is empty, merges it over defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		fileCfg, err := Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Processor.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects processor settings the importer cannot run with.
func (p ProcessorConfig) Validate() error {
	if p.ID == "" {
		return domain.Configurationf("processor id is empty")
	}
	if p.EntityType == "" {
		return domain.Configurationf("processor %s: entity type is empty", p.ID)
	}
	if p.UpdateMode != "" && !domain.UpdateMode(p.UpdateMode).Valid() {
		return domain.Configurationf("processor %s: unknown update mode %q", p.ID, p.UpdateMode)
	}
	if p.PageSize < 0 {
		return domain.Configurationf("processor %s: negative page size %d", p.ID, p.PageSize)
	}

	for i, f := range p.Fields {
		if f.ID == "" {
			return domain.Configurationf("processor %s: field %d has no id", p.ID, i)
		}
		switch f.Format {
		case "", "text", "html", "list":
		default:
			return domain.Configurationf("processor %s: field %q has unknown format %q", p.ID, f.ID, f.Format)
		}
		if f.Cardinality < 0 {
			return domain.Configurationf("processor %s: field %q has negative cardinality", p.ID, f.ID)
		}
	}

	for i, m := range p.Mappings {
		if strings.TrimSpace(m.Source) == "" || strings.TrimSpace(m.Target) == "" {
			return domain.Configurationf("processor %s: mapping %d has an empty source or target", p.ID, i)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	// a processor is replaced as a whole; mixing mappings with the default one makes no sense
	if override.Processor.ID != "" {
		base.Processor = override.Processor
	}

	if override.Source.URL != "" {
		base.Source.URL = override.Source.URL
	}
	if override.Source.Preset != "" {
		base.Source.Preset = override.Source.Preset
	}
	if override.Source.Listing != nil {
		base.Source.Listing = override.Source.Listing
		base.Source.Preset = ""
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIBase != "" {
		base.Notifications.Telegram.APIBase = override.Notifications.Telegram.APIBase
	}

	if override.Telemetry.Stdout {
		base.Telemetry.Stdout = true
	}
	if override.Telemetry.IntervalSeconds > 0 {
		base.Telemetry.IntervalSeconds = override.Telemetry.IntervalSeconds
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:feeds.db"},
		Processor: ProcessorConfig{
			ID:         "arxiv",
			EntityType: "article",
			Bundle:     "paper",
			UpdateMode: string(domain.UpdateExisting),
			PageSize:   50,
			Fields: []FieldConfig{
				{ID: "title", Name: "Title", Format: "text", Required: true},
				{ID: "summary", Name: "Summary", Format: "text"},
				{ID: "authors", Name: "Authors", Format: "list", Cardinality: 20},
				{ID: "published", Name: "Published"},
			},
			Mappings: []domain.MappingRule{
				{Source: "guid", Target: "guid", Unique: true},
				{Source: "url", Target: "url"},
				{Source: "title", Target: "title"},
				{Source: "text:summary", Target: "summary"},
				{Source: "authors", Target: "authors"},
				{Source: "date", Target: "published"},
			},
		},
		Source: SourceConfig{
			URL:    "https://export.arxiv.org/list/cs.AI/pastweek",
			Preset: "arxiv",
		},
		Telemetry: TelemetryConfig{IntervalSeconds: 30},
	}
}
