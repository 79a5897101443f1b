package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/pkg/platform/events"
	"chimera/pkg/platform/events/store/memory"
)

type failingSink struct{ err error }

func (f failingSink) Append(context.Context, events.Event) error { return f.err }

func TestTee(t *testing.T) {
	ctx := context.Background()
	ev, err := events.New(events.TypeRecordMinted, struct{}{})
	require.NoError(t, err)

	t.Run("forwards to every sink", func(t *testing.T) {
		primary := memory.NewInMemoryStore()
		mirror := memory.NewInMemoryStore()
		store := events.Tee(primary, mirror)

		require.NoError(t, store.Append(ctx, ev))

		got, err := mirror.List(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
		listed, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("sink failure keeps the stored event", func(t *testing.T) {
		primary := memory.NewInMemoryStore()
		boom := errors.New("broker down")
		store := events.Tee(primary, failingSink{err: boom})

		err := store.Append(ctx, ev)
		require.ErrorIs(t, err, boom)

		got, listErr := primary.List(ctx)
		require.NoError(t, listErr)
		assert.Len(t, got, 1)
	})
}
