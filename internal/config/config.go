// Package config provides configuration utilities for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for a run.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Workbook WorkbookConfig `mapstructure:"workbook" yaml:"workbook"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Printavo PrintavoConfig `mapstructure:"printavo" yaml:"printavo"`
	Assembly AssemblyConfig `mapstructure:"assembly" yaml:"assembly"`
	Order    OrderConfig    `mapstructure:"order" yaml:"order"`
	Customer CustomerConfig `mapstructure:"customer" yaml:"customer"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Sheets   SheetsConfig   `mapstructure:"sheets" yaml:"sheets"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// WorkbookConfig controls how the input spreadsheet is read.
type WorkbookConfig struct {
	Sheet          string `mapstructure:"sheet" yaml:"sheet"`
	HeaderScanRows int    `mapstructure:"header_scan_rows" yaml:"header_scan_rows"`
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	RateLimit   int           `mapstructure:"rate_limit" yaml:"rate_limit"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
}

// PrintavoConfig holds order platform credentials and client settings.
type PrintavoConfig struct {
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	Email      string        `mapstructure:"email" yaml:"email"`
	Token      string        `mapstructure:"token" yaml:"token"`
	StatusID   string        `mapstructure:"status_id" yaml:"status_id"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit" yaml:"rate_limit"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// AssemblyConfig controls how drafts become line items.
type AssemblyConfig struct {
	DefaultPrice string `mapstructure:"default_price" yaml:"default_price"`
	Consolidate  bool   `mapstructure:"consolidate" yaml:"consolidate"`
}

// OrderConfig holds order-level defaults.
type OrderConfig struct {
	CustomerNote      string `mapstructure:"customer_note" yaml:"customer_note"`
	ProductionNote    string `mapstructure:"production_note" yaml:"production_note"`
	DueInDays         int    `mapstructure:"due_in_days" yaml:"due_in_days"`
	CustomerDueInDays int    `mapstructure:"customer_due_in_days" yaml:"customer_due_in_days"`
}

// CustomerConfig names the customer the quote is for.
type CustomerConfig struct {
	ID        string `mapstructure:"id" yaml:"id"`
	Email     string `mapstructure:"email" yaml:"email"`
	FirstName string `mapstructure:"first_name" yaml:"first_name"`
	LastName  string `mapstructure:"last_name" yaml:"last_name"`
	Company   string `mapstructure:"company" yaml:"company"`
	Phone     string `mapstructure:"phone" yaml:"phone"`
}

// PipelineConfig controls concurrency of remote calls.
type PipelineConfig struct {
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout" yaml:"drain_timeout"`
}

// StorageConfig controls the run history database.
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
}

// SheetsConfig controls the optional Google Sheets export.
type SheetsConfig struct {
	ServiceAccountPath string `mapstructure:"service_account_path" yaml:"service_account_path"`
	ClientID           string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret       string `mapstructure:"client_secret" yaml:"client_secret"`
	RefreshToken       string `mapstructure:"refresh_token" yaml:"refresh_token"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id" yaml:"spreadsheet_id"`
	SpreadsheetName    string `mapstructure:"spreadsheet_name" yaml:"spreadsheet_name"`
	TimeZone           string `mapstructure:"time_zone" yaml:"time_zone"`
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled"`
}

// Load decodes configuration from v, which the caller has already pointed at
// config files, environment variables, and flags.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	applyEnvFallbacks(&cfg)
	cfg.Storage.DatabasePath = ExpandPath(cfg.Storage.DatabasePath)
	cfg.Sheets.ServiceAccountPath = ExpandPath(cfg.Sheets.ServiceAccountPath)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// NewViper returns a viper instance with the config search path, env prefix,
// and defaults used by the CLI.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	Configure(v, configFile)
	return v
}

// Configure points v at configFile, or at config.yaml in
// $HOME/.config/quotesmith and the working directory, and enables
// QUOTESMITH_ environment overrides.
func Configure(v *viper.Viper, configFile string) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "quotesmith"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("QUOTESMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
}

// ReadFile loads the config file if one exists. A missing file in the search
// path is not an error; a missing explicit file is.
func ReadFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("failed to read config: %w", err)
}

// SetDefaults registers every key with its default so that environment
// variables are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("workbook.sheet", "")
	v.SetDefault("workbook.header_scan_rows", 10)

	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "1s")
	v.SetDefault("llm.rate_limit", 50)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("printavo.endpoint", "https://www.printavo.com/api/v2")
	v.SetDefault("printavo.email", "")
	v.SetDefault("printavo.token", "")
	v.SetDefault("printavo.status_id", "")
	v.SetDefault("printavo.timeout", "30s")
	v.SetDefault("printavo.rate_limit", 120)
	v.SetDefault("printavo.max_retries", 3)
	v.SetDefault("printavo.retry_delay", "1s")

	v.SetDefault("assembly.default_price", "0")
	v.SetDefault("assembly.consolidate", false)

	v.SetDefault("order.customer_note", "")
	v.SetDefault("order.production_note", "")
	v.SetDefault("order.due_in_days", 7)
	v.SetDefault("order.customer_due_in_days", 14)

	v.SetDefault("customer.id", "")
	v.SetDefault("customer.email", "")
	v.SetDefault("customer.first_name", "")
	v.SetDefault("customer.last_name", "")
	v.SetDefault("customer.company", "")
	v.SetDefault("customer.phone", "")

	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.drain_timeout", "30s")

	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.database_path", "~/.local/share/quotesmith/history.db")

	v.SetDefault("sheets.enabled", false)
	v.SetDefault("sheets.service_account_path", "")
	v.SetDefault("sheets.client_id", "")
	v.SetDefault("sheets.client_secret", "")
	v.SetDefault("sheets.refresh_token", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.spreadsheet_name", "Quote Runs")
	v.SetDefault("sheets.time_zone", "America/New_York")
}

// applyEnvFallbacks fills credentials from the providers' conventional
// environment variables when the config leaves them empty.
func applyEnvFallbacks(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.Printavo.Email == "" {
		cfg.Printavo.Email = os.Getenv("PRINTAVO_EMAIL")
	}
	if cfg.Printavo.Token == "" {
		cfg.Printavo.Token = os.Getenv("PRINTAVO_TOKEN")
	}
	applySheetsEnvFallbacks(&cfg.Sheets)
}

func validate(cfg *Config) error {
	if _, err := common.ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if cfg.Logging.Format != "console" && cfg.Logging.Format != "json" {
		return fmt.Errorf("%w: logging format must be 'console' or 'json', got: %s", common.ErrInvalidConfig, cfg.Logging.Format)
	}

	switch strings.ToLower(cfg.LLM.Provider) {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrInvalidConfig, cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 1 {
		return fmt.Errorf("%w: llm temperature must be between 0 and 1", common.ErrInvalidConfig)
	}

	if cfg.Workbook.HeaderScanRows <= 0 {
		return fmt.Errorf("%w: workbook header_scan_rows must be positive", common.ErrInvalidConfig)
	}
	if cfg.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("%w: pipeline concurrency must be positive", common.ErrInvalidConfig)
	}
	if cfg.Order.DueInDays < 0 || cfg.Order.CustomerDueInDays < 0 {
		return fmt.Errorf("%w: order due days cannot be negative", common.ErrInvalidConfig)
	}

	price, err := decimal.NewFromString(cfg.Assembly.DefaultPrice)
	if err != nil {
		return fmt.Errorf("%w: assembly default_price %q is not a number", common.ErrInvalidConfig, cfg.Assembly.DefaultPrice)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: assembly default_price cannot be negative", common.ErrInvalidConfig)
	}

	return nil
}

// ValidateForSubmit checks the credentials a live submission needs.
func (c *Config) ValidateForSubmit() error {
	var missing []string
	if c.Printavo.Email == "" {
		missing = append(missing, "printavo.email (or PRINTAVO_EMAIL)")
	}
	if c.Printavo.Token == "" {
		missing = append(missing, "printavo.token (or PRINTAVO_TOKEN)")
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		missing = append(missing, "llm.api_key")
	}
	if c.Customer.ID == "" && c.Customer.Email == "" {
		missing = append(missing, "customer.id or customer.email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", common.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// DefaultUnitPrice returns the price used for rows that carry none.
func (c *Config) DefaultUnitPrice() decimal.Decimal {
	price, err := decimal.NewFromString(c.Assembly.DefaultPrice)
	if err != nil {
		return decimal.Zero
	}
	return price
}

// MaskSecret hides all but the edges of a credential for display.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****" + secret[len(secret)-4:]
	}
}

// Masked returns a copy with every credential masked.
func (c *Config) Masked() Config {
	m := *c
	m.LLM.APIKey = MaskSecret(m.LLM.APIKey)
	m.Printavo.Token = MaskSecret(m.Printavo.Token)
	m.Sheets.ClientSecret = MaskSecret(m.Sheets.ClientSecret)
	m.Sheets.RefreshToken = MaskSecret(m.Sheets.RefreshToken)
	return m
}
