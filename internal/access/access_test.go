package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "chimera/pkg/domain"
)

func TestParseAdmins(t *testing.T) {
	t.Run("normalizes and skips blanks", func(t *testing.T) {
		admins, err := ParseAdmins([]string{" 0x00000000000000000000000000000000000000AD ", ""})
		require.NoError(t, err)

		ok, err := admins.IsAdmin(context.Background(), id.Address("0x00000000000000000000000000000000000000ad"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejects malformed address", func(t *testing.T) {
		_, err := ParseAdmins([]string{"not-an-address"})
		assert.Error(t, err)
	})
}

func TestStaticAdmins_IsAdmin(t *testing.T) {
	ctx := context.Background()
	admin := id.Address("0x00000000000000000000000000000000000000aa")
	admins := NewStaticAdmins(admin)

	ok, err := admins.IsAdmin(ctx, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = admins.IsAdmin(ctx, id.Address("0x00000000000000000000000000000000000000bb"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = NewStaticAdmins().IsAdmin(ctx, admin)
	assert.False(t, ok, "an empty set admits nobody")
}
