//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/internal/platform/config"
	"chimera/internal/platform/redis"
	"chimera/pkg/testutil/containers"
)

func TestNew(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis client test in short mode")
	}
	ctx := context.Background()
	rc := containers.GetManager().GetRedis(t)

	t.Run("connects and reports healthy", func(t *testing.T) {
		client, err := redis.New(ctx, config.RedisConfig{URL: rc.URL, PoolSize: 2})
		require.NoError(t, err)
		defer client.Close()
		assert.NoError(t, client.Health(ctx))
	})

	t.Run("empty url disables redis", func(t *testing.T) {
		client, err := redis.New(ctx, config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := redis.New(ctx, config.RedisConfig{URL: "not a url"})
		assert.ErrorContains(t, err, "parse redis URL")
	})
}
