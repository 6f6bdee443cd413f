package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Checkout    CheckoutConfig    `yaml:"checkout"`
	Signing     SigningConfig     `yaml:"signing"`
	ExchangeAPI ExchangeAPIConfig `yaml:"exchange_api"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	DBName          string `yaml:"name"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type CheckoutConfig struct {
	// Host is the public base URL checkout links are built from,
	// e.g. https://pay.example.com
	Host            string        `yaml:"host"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	RateLockTTL     time.Duration `yaml:"rate_lock_ttl"`
	DefaultAsset    string        `yaml:"default_asset"`
	DefaultNetwork  string        `yaml:"default_network"`
	DefaultCurrency string        `yaml:"default_currency"`
}

type SigningConfig struct {
	// SkewWindow bounds how far an inbound request timestamp may drift
	// from server time before the signature is rejected.
	SkewWindow time.Duration `yaml:"skew_window"`
}

type ExchangeAPIConfig struct {
	BaseURL          string `yaml:"base_url"`
	Timeout          int    `yaml:"timeout"`
	MaxRetries       int    `yaml:"max_retries"`
	RetryBackoffBase int    `yaml:"retry_backoff_base"`
	APIKey           string `yaml:"api_key"`
}

type WebhookConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type WebSocketConfig struct {
	ReadBufferSize  int  `yaml:"read_buffer_size"`
	WriteBufferSize int  `yaml:"write_buffer_size"`
	CheckOrigin     bool `yaml:"check_origin"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	var config Config
	configData, err := os.ReadFile("./config.yaml")
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Checkout.SessionTTL == 0 {
		c.Checkout.SessionTTL = 30 * time.Minute
	}
	if c.Checkout.RateLockTTL == 0 {
		c.Checkout.RateLockTTL = 15 * time.Minute
	}
	if c.Checkout.DefaultAsset == "" {
		c.Checkout.DefaultAsset = "USDT"
	}
	if c.Checkout.DefaultNetwork == "" {
		c.Checkout.DefaultNetwork = "TRC20"
	}
	if c.Checkout.DefaultCurrency == "" {
		c.Checkout.DefaultCurrency = "USD"
	}
	if c.Signing.SkewWindow == 0 {
		c.Signing.SkewWindow = 5 * time.Minute
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 5 * time.Second
	}
}
