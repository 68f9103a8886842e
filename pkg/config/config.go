package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the platform services
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Mongo        MongoConfig        `mapstructure:"mongo"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Storage      StorageConfig      `mapstructure:"storage"`
	KYC          KYCConfig          `mapstructure:"kyc"`
	FCM          FCMConfig          `mapstructure:"fcm"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Onboarding   OnboardingConfig   `mapstructure:"onboarding"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	LogLevel     string             `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds postgres configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// MongoConfig holds mongo configuration for the notification store
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig holds redis configuration for the wizard session store
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns the host:port address for the redis client.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// KYCConfig holds the external identity-verification provider configuration
type KYCConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	CompanyID   string `mapstructure:"company_id"`
	Secret      string `mapstructure:"secret"`
	RedirectURL string `mapstructure:"redirect_url"`
	DocTypes    []string `mapstructure:"doc_types"`
	TimeoutSec  int    `mapstructure:"timeout_sec"`
}

// FCMConfig holds push-dispatch configuration
type FCMConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	ClientEmail    string `mapstructure:"client_email"`
	PrivateKeyPEM  string `mapstructure:"private_key_pem"`
	TokenURL       string `mapstructure:"token_url"`
	EndpointURL    string `mapstructure:"endpoint_url"`
}

// GatewayConfig holds reverse-proxy routing and auth configuration
type GatewayConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	OnboardingURL   string `mapstructure:"onboarding_url"`
	AdminURL        string `mapstructure:"admin_url"`
	SettingsURL     string `mapstructure:"settings_url"`
	NotificationURL string `mapstructure:"notification_url"`
}

// OnboardingConfig holds wizard-specific knobs
type OnboardingConfig struct {
	SubmissionURL    string `mapstructure:"submission_url"`
	SessionTTLHours  int    `mapstructure:"session_ttl_hours"`
	MaxDocumentBytes int64  `mapstructure:"max_document_bytes"`
	MaxSignatureBytes int64 `mapstructure:"max_signature_bytes"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RequestsPerMin  int  `mapstructure:"requests_per_min"`
	BurstSize       int  `mapstructure:"burst_size"`
	CleanupInterval int  `mapstructure:"cleanup_interval"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MetricsPath    string  `mapstructure:"metrics_path"`
	HealthPath     string  `mapstructure:"health_path"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medimart")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "medimart")
	viper.SetDefault("database.user", "medimart")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.migrations_path", "file://migrations")

	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "medimart")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("kyc.timeout_sec", 15)
	viper.SetDefault("kyc.doc_types", []string{"AADHAAR", "PANCR"})

	viper.SetDefault("fcm.token_url", "https://oauth2.googleapis.com/token")

	viper.SetDefault("onboarding.session_ttl_hours", 72)
	viper.SetDefault("onboarding.max_document_bytes", 5*1024*1024)
	viper.SetDefault("onboarding.max_signature_bytes", 2*1024*1024)

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_min", 100)
	viper.SetDefault("rate_limit.burst_size", 10)
	viper.SetDefault("rate_limit.cleanup_interval", 60)

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")
	viper.SetDefault("monitoring.sampling_rate", 0.1)

	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if secret := os.Getenv("GATEWAY_JWT_SECRET"); secret != "" {
		config.Gateway.JWTSecret = secret
	}

	if kycSecret := os.Getenv("KYC_SECRET"); kycSecret != "" {
		config.KYC.Secret = kycSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Onboarding.MaxDocumentBytes <= 0 {
		return fmt.Errorf("max document size must be positive")
	}

	if config.Onboarding.MaxSignatureBytes <= 0 {
		return fmt.Errorf("max signature size must be positive")
	}

	return nil
}
