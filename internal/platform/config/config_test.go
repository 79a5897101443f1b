package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Registry.MetadataCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Registry.TxTimeout)
	assert.Empty(t, cfg.Events.KafkaBrokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CHIMERA_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/chimera")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CHIMERA_ADMINS", "0x00000000000000000000000000000000000000aa,0x00000000000000000000000000000000000000bb")
	t.Setenv("CHIMERA_MERGE_FEE", "25")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Len(t, cfg.Auth.Admins, 2)
	assert.Equal(t, uint64(25), cfg.Registry.InitialMergeFee)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.KafkaBrokers)
}

func TestFromEnv_ParseError(t *testing.T) {
	t.Setenv("CHIMERA_MERGE_FEE", "-1")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	base := func() Server {
		return Server{
			Auth:     AuthConfig{JWTSigningKey: "k"},
			Registry: RegistryConfig{TxTimeout: time.Second},
			Store:    StoreConfig{Backend: StoreMemory},
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("postgres without url", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = StorePostgres
		cfg.Redis.URL = "redis://localhost:6379"
		assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	})

	t.Run("memory store with redis ownership", func(t *testing.T) {
		cfg := base()
		cfg.Redis.URL = "redis://localhost:6379"
		assert.ErrorContains(t, cfg.Validate(), "REDIS_URL requires a durable store")
	})

	t.Run("durable stores need redis ownership", func(t *testing.T) {
		for _, backend := range []string{StoreSQLite, StorePostgres} {
			cfg := base()
			cfg.Store = StoreConfig{Backend: backend, SQLitePath: "a.db", SQLiteLedgerPath: "b.db", DatabaseURL: "postgres://x"}
			assert.ErrorContains(t, cfg.Validate(), "requires REDIS_URL", backend)

			cfg.Redis.URL = "redis://localhost:6379"
			assert.NoError(t, cfg.Validate(), backend)
		}
	})

	t.Run("sqlite ledger shares the registry file", func(t *testing.T) {
		cfg := base()
		cfg.Store = StoreConfig{Backend: StoreSQLite, SQLitePath: "a.db", SQLiteLedgerPath: "a.db"}
		cfg.Redis.URL = "redis://localhost:6379"
		assert.ErrorContains(t, cfg.Validate(), "must differ")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = "mongo"
		assert.ErrorContains(t, cfg.Validate(), "unknown store backend")
	})

	t.Run("errors accumulate", func(t *testing.T) {
		cfg := base()
		cfg.Auth.JWTSigningKey = ""
		cfg.Registry.TxTimeout = 0
		err := cfg.Validate()
		assert.ErrorContains(t, err, "JWT_SIGNING_KEY")
		assert.ErrorContains(t, err, "CHIMERA_TX_TIMEOUT")
	})
}
