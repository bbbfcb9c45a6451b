package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Identity   IdentityConfig  `mapstructure:"identity"`
	Provider   ProviderConfig  `mapstructure:"provider"`
	Rental     RentalConfig    `mapstructure:"rental"`
	Rotation   RotationConfig  `mapstructure:"rotation"`
	Partners   PartnersConfig  `mapstructure:"partners"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Catalog    []CatalogEntry  `mapstructure:"catalog"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

// IdentityConfig points at the external identity provider used for bearer
// token verification, account creation and password-reset links.
type IdentityConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// ProviderConfig points at the external numbering provider.
type ProviderConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type RentalConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	OTPMinDigits int           `mapstructure:"otp_min_digits"`
	OTPMaxDigits int           `mapstructure:"otp_max_digits"`
}

type RotationConfig struct {
	MaxPerHour int `mapstructure:"max_per_hour"`
}

type PartnersConfig struct {
	AllowReferred bool `mapstructure:"allow_referred"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

// CatalogEntry is one sellable service/country combination with its base
// price in integer currency units. The catalog is immutable after startup.
type CatalogEntry struct {
	Code    string `mapstructure:"code"`
	Service string `mapstructure:"service"`
	Country string `mapstructure:"country"`
	Price   int64  `mapstructure:"price"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (NUMGATE_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (NUMGATE_*)
	v.SetEnvPrefix("NUMGATE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
