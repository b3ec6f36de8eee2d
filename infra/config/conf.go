// Package config loads service configuration from the environment, an
// optional .env file, or a YAML/TOML/EDN file. Environment variables always
// take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/mstgnz/gobaokim/baokim"
)

// Config holds all configuration for the service.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Baokim     BaokimConfig     `yaml:"baokim"`
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	Storage    StorageConfig    `yaml:"storage"`
}

// AppConfig represents the HTTP server and logging settings.
type AppConfig struct {
	Port        string `yaml:"port" env:"APP_PORT" env-default:"9999" validate:"required,numeric"`
	Environment string `yaml:"environment" env:"APP_ENV" env-default:"development" validate:"oneof=development staging production"`
	LogLevel    string `yaml:"log_level" env:"LOGGING_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	LogDir      string `yaml:"log_dir" env:"LOG_DIR" env-default:""`
	APIKey      string `yaml:"api_key" env:"API_KEY" env-default:""`
	CORSOrigins string `yaml:"cors_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`

	// RateLimitPerMinute caps /v1 requests per client IP. Zero disables it.
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE" env-default:"100" validate:"gte=0"`
	// WebhookAllowedIPs restricts the webhook receiver. Empty allows all.
	WebhookAllowedIPs  []string `yaml:"webhook_allowed_ips" env:"WEBHOOK_ALLOWED_IPS" env-separator:","`
	// TrustedProxies are the IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies     []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" env-separator:"," validate:"dive,cidr|ip"`
}

// BaokimConfig holds gateway credentials and connection settings.
type BaokimConfig struct {
	BaseURL            string        `yaml:"base_url" env:"BAOKIM_BASE_URL" env-default:"https://devtest.baokim.vn" validate:"required,url"`
	Timeout            time.Duration `yaml:"timeout" env:"BAOKIM_TIMEOUT" env-default:"30s" validate:"gt=0"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout" env:"BAOKIM_CONNECT_TIMEOUT" env-default:"10s" validate:"gt=0"`
	AuthMode           string        `yaml:"auth_mode" env:"BAOKIM_AUTH_MODE" env-default:"master_sub" validate:"oneof=master_sub direct"`
	MerchantCode       string        `yaml:"merchant_code" env:"BAOKIM_MERCHANT_CODE" validate:"required"`
	MasterMerchantCode string        `yaml:"master_merchant_code" env:"BAOKIM_MASTER_MERCHANT_CODE" validate:"required_if=AuthMode master_sub"`
	SubMerchantCode    string        `yaml:"sub_merchant_code" env:"BAOKIM_SUB_MERCHANT_CODE" validate:"required_if=AuthMode master_sub"`
	ClientID           string        `yaml:"client_id" env:"BAOKIM_CLIENT_ID" validate:"required"`
	ClientSecret       string        `yaml:"client_secret" env:"BAOKIM_CLIENT_SECRET" validate:"required"`
	PrivateKeyPath     string        `yaml:"private_key_path" env:"BAOKIM_PRIVATE_KEY_PATH" env-default:"keys/merchant_private.pem"`
	PublicKeyPath      string        `yaml:"public_key_path" env:"BAOKIM_PUBLIC_KEY_PATH" env-default:"keys/baokim_public.pem"`
	URLSuccess         string        `yaml:"url_success" env:"BAOKIM_URL_SUCCESS" validate:"omitempty,url"`
	URLFail            string        `yaml:"url_fail" env:"BAOKIM_URL_FAIL" validate:"omitempty,url"`
	WebhookURL         string        `yaml:"webhook_url" env:"BAOKIM_WEBHOOK_URL" validate:"omitempty,url"`
	VerifyWebhook      bool          `yaml:"verify_webhook" env:"BAOKIM_VERIFY_WEBHOOK" env-default:"true"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" env:"BAOKIM_INSECURE_SKIP_VERIFY" env-default:"false"`
}

// OpenSearchConfig controls log indexing.
type OpenSearchConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLE_OPENSEARCH_LOGGING" env-default:"false"`
	URL      string `yaml:"url" env:"OPENSEARCH_URL" env-default:"http://localhost:9200" validate:"omitempty,url"`
	User     string `yaml:"user" env:"OPENSEARCH_USER" env-default:""`
	Password string `yaml:"password" env:"OPENSEARCH_PASSWORD" env-default:""`
}

// StorageConfig controls the SQLite journal.
type StorageConfig struct {
	Enabled    bool   `yaml:"enabled" env:"STORAGE_ENABLED" env-default:"true"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"./data/gobaokim.db" validate:"required_if=Enabled true"`

	// LogRetentionDays prunes older journal rows. Zero keeps everything.
	LogRetentionDays int `yaml:"log_retention_days" env:"LOG_RETENTION_DAYS" env-default:"30" validate:"gte=0"`
}

// Retention returns how long journal rows are kept, zero meaning forever.
func (s StorageConfig) Retention() time.Duration {
	return time.Duration(s.LogRetentionDays) * 24 * time.Hour
}

var validate = validator.New()

// Load reads configuration. path may be empty, a .env file, or a YAML, TOML
// or EDN file. A missing .env file is ignored.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".toml", ".edn", ".json":
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, baokim.NewConfigError(fmt.Sprintf("read config file %s", path), err)
		}
	default:
		if path != "" {
			if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, baokim.NewConfigError(fmt.Sprintf("read env file %s", path), err)
			}
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, baokim.NewConfigError("read environment", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return baokim.NewConfigError("invalid configuration", err)
	}
	if c.IsProduction() {
		if c.Baokim.InsecureSkipVerify {
			return baokim.NewConfigError("BAOKIM_INSECURE_SKIP_VERIFY is not allowed in production", nil)
		}
		if !c.Baokim.VerifyWebhook {
			return baokim.NewConfigError("BAOKIM_VERIFY_WEBHOOK must be enabled in production", nil)
		}
	}
	return nil
}

// Description lists the supported environment variables.
func Description() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return desc
}

// IsProduction reports whether the service runs against production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Credentials returns the token credentials for the configured auth mode.
func (c *Config) Credentials() baokim.Credentials {
	return baokim.Credentials{
		Mode:               baokim.AuthMode(c.Baokim.AuthMode),
		MerchantCode:       c.Baokim.MerchantCode,
		MasterMerchantCode: c.Baokim.MasterMerchantCode,
		SubMerchantCode:    c.Baokim.SubMerchantCode,
		ClientID:           c.Baokim.ClientID,
		ClientSecret:       c.Baokim.ClientSecret,
	}
}

// TransportConfig returns the HTTP client settings for the gateway.
func (c *Config) TransportConfig() *baokim.HTTPClientConfig {
	tc := baokim.CreateHTTPClientConfig(c.Baokim.BaseURL, c.Baokim.Timeout, c.Baokim.ConnectTimeout)
	tc.InsecureSkipVerify = c.Baokim.InsecureSkipVerify
	return tc
}
