package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable, e.g. CUSTODY_SERVER_ADDR.
const EnvPrefix = "CUSTODY"

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Environment string
	Server      Server
	Log         Log
	Storage     Storage
	Redis       RedisConfig
	Kafka       KafkaConfig
	Tracing     Tracing
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	// IssuerAccount may mint assets on the ledger. Empty disables minting.
	IssuerAccount   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Log struct {
	Level  string
	Format string
}

// Storage selects where custodians, balances, roles and audit events live.
// Backend "memory" keeps everything in process; "postgres" needs DatabaseURL.
type Storage struct {
	Backend     string
	DatabaseURL string
}

// RedisConfig configures the optional Redis role store. An empty URL leaves
// roles in the primary backend.
type RedisConfig struct {
	URL          string
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	PollInterval time.Duration
	BatchSize    int
}

type Tracing struct {
	Enabled bool
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing precedence. path may be empty.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Environment: v.GetString("environment"),
		Server: Server{
			Addr:            v.GetString("server.addr"),
			JWTSigningKey:   v.GetString("server.jwt_signing_key"),
			JWTIssuer:       v.GetString("server.jwt_issuer"),
			JWTAudience:     v.GetString("server.jwt_audience"),
			IssuerAccount:   v.GetString("server.issuer_account"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Storage: Storage{
			Backend:     v.GetString("storage.backend"),
			DatabaseURL: v.GetString("storage.database_url"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			KeyPrefix:    v.GetString("redis.key_prefix"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(v.GetString("kafka.brokers")),
			Topic:        v.GetString("kafka.topic"),
			PollInterval: v.GetDuration("kafka.poll_interval"),
			BatchSize:    v.GetInt("kafka.batch_size"),
		},
		Tracing: Tracing{
			Enabled: v.GetBool("tracing.enabled"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_signing_key", devSigningKey)
	v.SetDefault("server.jwt_issuer", "custody")
	v.SetDefault("server.jwt_audience", "custody-api")
	v.SetDefault("server.issuer_account", "")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.database_url", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "custody:roles")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "custody.audit")
	v.SetDefault("kafka.poll_interval", time.Second)
	v.SetDefault("kafka.batch_size", 100)

	v.SetDefault("tracing.enabled", false)
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if len(c.Kafka.Brokers) > 0 && c.Storage.Backend != "postgres" {
		return fmt.Errorf("the kafka outbox relay requires the postgres backend")
	}
	if c.Environment == "production" && c.Server.JWTSigningKey == devSigningKey {
		return fmt.Errorf("server.jwt_signing_key must be set in production")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
