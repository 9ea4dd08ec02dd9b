// Package config loads application configuration from defaults, an optional
// YAML file and CAPTURE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/finance-capture/internal/extraction"
	"github.com/dvloznov/finance-capture/internal/ledger"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CAPTURE_SERVER_PORT.
const EnvPrefix = "CAPTURE"

// Default values. They can be overridden by the config file or environment.
const (
	// DefaultModelName is the default Gemini model used for extraction.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultProvider is the default extraction provider.
	DefaultProvider = extraction.ProviderGemini

	// DefaultExtractionTimeout bounds one extraction call.
	DefaultExtractionTimeout = 30 * time.Second

	// DefaultPort is the HTTP listen port.
	DefaultPort = "8080"

	// DefaultLedgerDriver is the default ledger backend.
	DefaultLedgerDriver = ledger.DriverSQLite

	// DefaultBigQueryTable is the ledger table name in BigQuery.
	DefaultBigQueryTable = "transactions"
)

// Config is the typed application configuration.
type Config struct {
	Logging    LoggingConfig
	Extraction ExtractionConfig
	Ledger     ledger.Config
	Server     ServerConfig
	Receipts   ReceiptsConfig
	Speech     SpeechConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// ExtractionConfig configures the extraction provider.
type ExtractionConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// ProviderConfig converts to the extraction factory input.
func (c ExtractionConfig) ProviderConfig() extraction.ProviderConfig {
	return extraction.ProviderConfig{
		Provider: c.Provider,
		APIKey:   c.APIKey,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// ReceiptsConfig configures the receipt image archive. An empty bucket
// disables archiving.
type ReceiptsConfig struct {
	Bucket string
}

// SpeechConfig reports whether speech capture is available on this host.
type SpeechConfig struct {
	Enabled bool
}

// New returns a viper instance with defaults, env binding and, when
// cfgFile is set or a config.yaml is found, the file contents loaded.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "finance-capture"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config.New: read config: %w", err)
		}
	}

	return v, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("extraction.provider", DefaultProvider)
	v.SetDefault("extraction.model", "")
	v.SetDefault("extraction.api_key", "")
	v.SetDefault("extraction.base_url", "")
	v.SetDefault("extraction.timeout", DefaultExtractionTimeout)

	v.SetDefault("ledger.driver", DefaultLedgerDriver)
	v.SetDefault("ledger.sqlite_path", defaultSQLitePath())
	v.SetDefault("ledger.bigquery.project_id", "")
	v.SetDefault("ledger.bigquery.dataset", "finance")
	v.SetDefault("ledger.bigquery.table", DefaultBigQueryTable)

	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("receipts.bucket", "")

	v.SetDefault("speech.enabled", true)
}

// Load reads the typed configuration out of v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Extraction: ExtractionConfig{
			Provider: strings.ToLower(v.GetString("extraction.provider")),
			APIKey:   v.GetString("extraction.api_key"),
			Model:    v.GetString("extraction.model"),
			BaseURL:  v.GetString("extraction.base_url"),
			Timeout:  v.GetDuration("extraction.timeout"),
		},
		Ledger: ledger.Config{
			Driver:     strings.ToLower(v.GetString("ledger.driver")),
			SQLitePath: v.GetString("ledger.sqlite_path"),
			BigQuery: ledger.BigQueryConfig{
				ProjectID: v.GetString("ledger.bigquery.project_id"),
				Dataset:   v.GetString("ledger.bigquery.dataset"),
				Table:     v.GetString("ledger.bigquery.table"),
			},
		},
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Receipts: ReceiptsConfig{
			Bucket: v.GetString("receipts.bucket"),
		},
		Speech: SpeechConfig{
			Enabled: v.GetBool("speech.enabled"),
		},
	}

	if cfg.Extraction.Model == "" && cfg.Extraction.Provider == extraction.ProviderGemini {
		cfg.Extraction.Model = DefaultModelName
	}
	if cfg.Extraction.APIKey == "" {
		cfg.Extraction.APIKey = providerAPIKey(cfg.Extraction.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Extraction.Provider {
	case extraction.ProviderGemini, extraction.ProviderOpenAI:
	default:
		return fmt.Errorf("config: unsupported extraction provider %q", c.Extraction.Provider)
	}
	if c.Extraction.Timeout < 0 {
		return fmt.Errorf("config: extraction timeout must not be negative")
	}

	switch c.Ledger.Driver {
	case ledger.DriverMemory:
	case ledger.DriverSQLite:
		if c.Ledger.SQLitePath == "" {
			return fmt.Errorf("config: ledger.sqlite_path is required for the sqlite driver")
		}
	case ledger.DriverBigQuery:
		if c.Ledger.BigQuery.ProjectID == "" {
			return fmt.Errorf("config: ledger.bigquery.project_id is required for the bigquery driver")
		}
	default:
		return fmt.Errorf("config: unsupported ledger driver %q", c.Ledger.Driver)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("config: server.port is required")
	}
	return nil
}

// providerAPIKey reads the key from the variable the provider's own client
// library uses. A key is never shared across providers.
func providerAPIKey(provider string) string {
	switch provider {
	case extraction.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case extraction.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "finance-capture.db"
	}
	return filepath.Join(home, ".local", "share", "finance-capture", "ledger.db")
}
