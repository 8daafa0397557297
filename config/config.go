package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Ledger drivers.
const (
	LedgerDriverPostgres  = "postgres"
	LedgerDriverFirestore = "firestore"
	LedgerDriverMemory    = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LedgerConfig selects the ledger store backend.
type LedgerConfig struct {
	Driver  string        `mapstructure:"driver"`  // postgres, firestore, memory
	Timeout time.Duration `mapstructure:"timeout"` // per ledger operation
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type FirestoreConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StripeConfig struct {
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Platform      string        `mapstructure:"platform"` // tagged on every gateway object
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	Expiry time.Duration `mapstructure:"expiry"` // only used when issuing tokens
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from .env, a config file and environment variables.
// Environment variables override file values. Prefix: TIPJAR_, nested keys use
// underscore (TIPJAR_DATABASE_HOST). The secrets are also read from their
// conventional unprefixed names: STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET, JWT_SECRET.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("ledger.driver", LedgerDriverPostgres)
	v.SetDefault("ledger.timeout", "5s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "tipjar")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("firestore.project_id", "")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.timeout", "20s")
	v.SetDefault("stripe.platform", "amplifi")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.expiry", "1h")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("TIPJAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	secrets := map[string]string{
		"stripe.secret_key":     "STRIPE_SECRET_KEY",
		"stripe.webhook_secret": "STRIPE_WEBHOOK_SECRET",
		"jwt.secret":            "JWT_SECRET",
	}
	for key, env := range secrets {
		prefixed := "TIPJAR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every missing secret or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("stripe secret key is required (STRIPE_SECRET_KEY)"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("stripe webhook secret is required (STRIPE_WEBHOOK_SECRET)"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt secret is required (JWT_SECRET)"))
	}
	switch c.Ledger.Driver {
	case LedgerDriverPostgres, LedgerDriverMemory:
	case LedgerDriverFirestore:
		if c.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("firestore project id is required for the firestore ledger driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver))
	}
	return errors.Join(errs...)
}
