package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config captures everything the gateway needs at startup. Values come from
// an optional TOML file with environment overrides on top, so main stays lean.
type Config struct {
	Listen    string  `toml:"listen"`
	AdminAddr string  `toml:"admin_addr"`
	Tenant    Tenant  `toml:"tenant"`
	Backend   Backend `toml:"backend"`
	Redis     Redis   `toml:"redis"`
	Kafka     Kafka   `toml:"kafka"`
	Log       Log     `toml:"log"`
}

// Tenant holds the per-institution protocol settings applied to every
// terminal connection.
type Tenant struct {
	InstitutionID        string `toml:"institution_id"`
	Location             string `toml:"location"`
	Timezone             string `toml:"timezone"`
	Charset              string `toml:"charset"`
	FieldDelimiter       string `toml:"field_delimiter"`
	ErrorDetection       bool   `toml:"error_detection"`
	PasswordVerification bool   `toml:"password_verification"`
}

// Backend holds the REST backend connection settings.
type Backend struct {
	BaseURL  string        `toml:"base_url"`
	Tenant   string        `toml:"tenant"`
	Username string        `toml:"username"`
	Password string        `toml:"password"`
	Timeout  time.Duration `toml:"timeout"`
}

// Redis is the optional shared token cache. Empty Addr disables it.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Kafka is the optional transaction event sink. Empty Brokers disables it.
type Kafka struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// Log controls the root logger.
type Log struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Load reads the TOML file at path (skipped when path is empty), applies
// environment overrides, and fills defaults.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Backend.BaseURL == "" {
		return Config{}, fmt.Errorf("backend base_url is required")
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Listen:    ":6443",
		AdminAddr: ":8081",
		Tenant: Tenant{
			Timezone:       "UTC",
			Charset:        "ISO-8859-1",
			FieldDelimiter: "|",
			ErrorDetection: true,
		},
		Backend: Backend{
			Timeout: 30 * time.Second,
		},
		Kafka: Kafka{
			Topic: "sip2.transactions",
		},
		Log: Log{Level: "info"},
	}
}

func (c *Config) applyEnv() {
	setString(&c.Listen, "SIP2_LISTEN")
	setString(&c.AdminAddr, "SIP2_ADMIN_ADDR")
	setString(&c.Tenant.InstitutionID, "SIP2_INSTITUTION_ID")
	setString(&c.Tenant.Location, "SIP2_LOCATION")
	setString(&c.Tenant.Timezone, "SIP2_TIMEZONE")
	setString(&c.Backend.BaseURL, "SIP2_BACKEND_URL")
	setString(&c.Backend.Tenant, "SIP2_BACKEND_TENANT")
	setString(&c.Backend.Username, "SIP2_BACKEND_USERNAME")
	setString(&c.Backend.Password, "SIP2_BACKEND_PASSWORD")
	setString(&c.Redis.Addr, "SIP2_REDIS_ADDR")
	setString(&c.Log.Level, "SIP2_LOG_LEVEL")

	if v := os.Getenv("SIP2_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
