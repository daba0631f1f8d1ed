// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var pairRe = regexp.MustCompile(`^[A-Z0-9]{2,10}/[A-Z0-9]{2,10}$`)

// Config represents the complete configuration structure
type Config struct {
	App       AppConfig                 `yaml:"app"`
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`
	Ladder    LadderConfig              `yaml:"ladder"`
	System    SystemConfig              `yaml:"system"`
	Alerts    AlertsConfig              `yaml:"alerts"`
	Telemetry TelemetryConfig           `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Exchange   string `yaml:"exchange"`    // venue to trade on
	Pair       string `yaml:"pair"`        // market, BASE/QUOTE
	NotifyName string `yaml:"notify_name"` // name prefix used in notifications
	SilentMode bool   `yaml:"silent_mode"` // log alerts without dispatching channels
}

// ExchangeConfig contains exchange-specific configuration
type ExchangeConfig struct {
	APIKey     string `yaml:"api_key"`
	SecretKey  string `yaml:"secret_key"`
	Passphrase string `yaml:"passphrase"` // required for some venues
	BaseURL    string `yaml:"base_url"`   // optional override for API URL
	WSURL      string `yaml:"ws_url"`     // optional override for websocket URL
	UseTicker  bool   `yaml:"use_ticker"` // subscribe to the public ticker stream
}

// LadderConfig contains the ladder strategy parameters
type LadderConfig struct {
	IsActive         bool     `yaml:"is_active"`
	Count            int      `yaml:"count"`              // grid depth per side
	PriceStepPercent float64  `yaml:"price_step_percent"` // step between rungs
	Amount           float64  `yaml:"amount"`             // nominal order amount
	AmountCoin       string   `yaml:"amount_coin"`        // "base" or "quote"
	AmountDeviation  float64  `yaml:"amount_deviation"`   // sizing jitter, default 0.02
	MidPrice         float64  `yaml:"mid_price"`          // initial mid, 0 = derive from rates
	MidPriceType     string   `yaml:"mid_price_type"`
	ReInit           bool     `yaml:"re_init"` // one-shot full rebuild flag
	// PreviousFilledStates is the whitelist for the previous-order fill
	// heuristic used when the venue cannot report a single order's status.
	PreviousFilledStates []string `yaml:"previous_filled_states"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
	DBPath   string `yaml:"db_path"`
}

// AlertsConfig contains notification channel settings
type AlertsConfig struct {
	SlackWebhookURL  string `yaml:"slack_webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnvVars replaces ${VAR} references with environment values
func expandEnvVars(content string) string {
	return os.Expand(content, func(key string) string {
		return os.Getenv(key)
	})
}

func (c *Config) applyDefaults() {
	if c.Ladder.AmountDeviation == 0 {
		c.Ladder.AmountDeviation = 0.02
	}
	if c.Ladder.AmountCoin == "" {
		c.Ladder.AmountCoin = "base"
	}
	if len(c.Ladder.PreviousFilledStates) == 0 {
		c.Ladder.PreviousFilledStates = []string{"Filled", "Partly filled"}
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.System.DBPath == "" {
		c.System.DBPath = "ladderbot.db"
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateApp(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateExchanges(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateLadder(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystem(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

func (c *Config) validateApp() error {
	if c.App.Exchange == "" {
		return ValidationError{Field: "app.exchange", Value: c.App.Exchange, Message: "exchange is required"}
	}
	if !pairRe.MatchString(c.App.Pair) {
		return ValidationError{Field: "app.pair", Value: c.App.Pair, Message: "pair must be in BASE/QUOTE form"}
	}
	return nil
}

func (c *Config) validateExchanges() error {
	cfg, ok := c.Exchanges[c.App.Exchange]
	if !ok {
		return ValidationError{Field: "exchanges", Value: c.App.Exchange, Message: "no credentials section for the selected exchange"}
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return ValidationError{Field: "exchanges." + c.App.Exchange, Value: "", Message: "api_key and secret_key are required"}
	}
	return nil
}

func (c *Config) validateLadder() error {
	l := c.Ladder
	if l.Count < 1 || l.Count > 200 {
		return ValidationError{Field: "ladder.count", Value: l.Count, Message: "must be between 1 and 200"}
	}
	if l.PriceStepPercent <= 0 {
		return ValidationError{Field: "ladder.price_step_percent", Value: l.PriceStepPercent, Message: "must be positive"}
	}
	if l.PriceStepPercent >= 100 {
		return ValidationError{Field: "ladder.price_step_percent", Value: l.PriceStepPercent, Message: "must be below 100"}
	}
	if l.Amount <= 0 {
		return ValidationError{Field: "ladder.amount", Value: l.Amount, Message: "must be positive"}
	}
	if l.AmountCoin != "base" && l.AmountCoin != "quote" {
		return ValidationError{Field: "ladder.amount_coin", Value: l.AmountCoin, Message: "must be \"base\" or \"quote\""}
	}
	if l.AmountDeviation < 0 || l.AmountDeviation >= 1 {
		return ValidationError{Field: "ladder.amount_deviation", Value: l.AmountDeviation, Message: "must be in [0, 1)"}
	}
	if l.MidPrice < 0 {
		return ValidationError{Field: "ladder.mid_price", Value: l.MidPrice, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateSystem() error {
	switch strings.ToUpper(c.System.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
		return nil
	}
	return ValidationError{Field: "system.log_level", Value: c.System.LogLevel, Message: "must be one of DEBUG INFO WARN ERROR FATAL"}
}
