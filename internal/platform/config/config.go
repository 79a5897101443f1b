// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends for creature records.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"CHIMERA_ADDR" envDefault:":8080"`
	MetricsAddr     string        `env:"CHIMERA_METRICS_ADDR" envDefault:":9090"`
	LogLevel        string        `env:"CHIMERA_LOG_LEVEL" envDefault:"info"`
	RequestTimeout  time.Duration `env:"CHIMERA_REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"CHIMERA_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Auth     AuthConfig
	Registry RegistryConfig
	Store    StoreConfig
	Redis    RedisConfig
	Events   EventsConfig
}

// AuthConfig configures bearer token validation and the admin role.
type AuthConfig struct {
	JWTSigningKey string   `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string   `env:"JWT_ISSUER" envDefault:"chimera"`
	JWTAudience   string   `env:"JWT_AUDIENCE" envDefault:"chimera-registry"`
	Admins        []string `env:"CHIMERA_ADMINS" envSeparator:","`
}

// RegistryConfig holds registry policy knobs.
type RegistryConfig struct {
	InitialMergeFee  uint64        `env:"CHIMERA_MERGE_FEE" envDefault:"0"`
	MetadataCacheTTL time.Duration `env:"CHIMERA_METADATA_CACHE_TTL" envDefault:"10m"`
	TxTimeout        time.Duration `env:"CHIMERA_TX_TIMEOUT" envDefault:"5s"`
}

// StoreConfig selects the record store and the ledger database. The sqlite
// ledger lives in its own file so its writes never wait on the registry.
type StoreConfig struct {
	Backend          string `env:"CHIMERA_STORE" envDefault:"memory"`
	SQLitePath       string `env:"CHIMERA_SQLITE_PATH" envDefault:"chimera.db"`
	SQLiteLedgerPath string `env:"CHIMERA_SQLITE_LEDGER_PATH" envDefault:"chimera-ledger.db"`
	DatabaseURL      string `env:"DATABASE_URL"`
}

// RedisConfig configures the ownership registry. An empty URL keeps
// ownership in memory, which only the memory store may use.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	KeyPrefix    string        `env:"REDIS_KEY_PREFIX" envDefault:"chimera"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// EventsConfig configures event delivery. With no brokers events stay in
// the in-process store.
type EventsConfig struct {
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic        string   `env:"KAFKA_TOPIC" envDefault:"chimera.registry.events"`
	ReplicationFactor int16    `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`
	BufferSize        int      `env:"CHIMERA_EVENT_BUFFER" envDefault:"256"`
}

// FromEnv parses and validates the server configuration.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Server) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Backend == StoreSQLite {
		switch {
		case c.Store.SQLitePath == "":
			errs = append(errs, errors.New("CHIMERA_SQLITE_PATH is required for the sqlite store"))
		case c.Store.SQLiteLedgerPath == "":
			errs = append(errs, errors.New("CHIMERA_SQLITE_LEDGER_PATH is required for the sqlite store"))
		case c.Store.SQLiteLedgerPath == c.Store.SQLitePath:
			errs = append(errs, errors.New("CHIMERA_SQLITE_LEDGER_PATH must differ from CHIMERA_SQLITE_PATH"))
		}
	}
	errs = append(errs, c.validateDurability()...)
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must not be empty"))
	}
	if c.Registry.TxTimeout <= 0 {
		errs = append(errs, errors.New("CHIMERA_TX_TIMEOUT must be positive"))
	}
	if c.Registry.MetadataCacheTTL < 0 {
		errs = append(errs, errors.New("CHIMERA_METADATA_CACHE_TTL must not be negative"))
	}
	if c.Events.BufferSize < 0 {
		errs = append(errs, errors.New("CHIMERA_EVENT_BUFFER must not be negative"))
	}
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// validateDurability rejects record stores and ownership registries that do
// not survive a restart together. A memory store restarts ids at 0 and would
// collide with holders kept in Redis; a durable store with in-memory owners
// would come back with every record unowned.
func (c Server) validateDurability() []error {
	switch {
	case c.Store.Backend == StoreMemory && c.Redis.URL != "":
		return []error{errors.New("REDIS_URL requires a durable store: set CHIMERA_STORE to sqlite or postgres")}
	case c.Store.Backend != StoreMemory && c.Redis.URL == "":
		return []error{fmt.Errorf("CHIMERA_STORE=%s requires REDIS_URL for ownership", c.Store.Backend)}
	}
	return nil
}
