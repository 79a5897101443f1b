package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/pkg/platform/events"
	"chimera/pkg/platform/events/store/memory"
)

func newEvent(t *testing.T, eventType events.Type) events.Event {
	t.Helper()
	ev, err := events.New(eventType, map[string]uint64{"fee": 1})
	require.NoError(t, err)
	return ev
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), newEvent(t, events.TypeMergeFeeUpdated))
	require.NoError(t, err)

	list, err := pub.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, events.TypeMergeFeeUpdated, list[0].Type)
	assert.Equal(t, events.StreamKey, list[0].Key)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), newEvent(t, events.TypeRecordMinted)))
	}

	require.NoError(t, pub.Close())

	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 10, "all events should be drained on close")
}

func TestPublisher_AsyncPreservesOrder(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	order := []events.Type{events.TypeRecordMinted, events.TypeRecordMinted, events.TypeRecordsMerged, events.TypeMergeFeeUpdated}
	for _, eventType := range order {
		require.NoError(t, pub.Emit(context.Background(), newEvent(t, eventType)))
	}
	require.NoError(t, pub.Close())

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, len(order))
	for i, eventType := range order {
		assert.Equal(t, eventType, list[i].Type)
	}
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	err := pub.Emit(context.Background(), newEvent(t, events.TypeRecordMinted))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_BufferFull_DoesNotPanic(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), newEvent(t, events.TypeRecordMinted))
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), newEvent(t, events.TypeRecordMinted)))
	after := time.Now()

	custom := newEvent(t, events.TypeRecordMinted)
	custom.Timestamp = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), custom))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].Timestamp.Before(before))
	assert.False(t, list[0].Timestamp.After(after))
	assert.Equal(t, custom.Timestamp, list[1].Timestamp)
}

func TestEventDecode(t *testing.T) {
	ev, err := events.New(events.TypeBalanceWithdrawn, map[string]uint64{"amount": 9})
	require.NoError(t, err)

	var body map[string]uint64
	require.NoError(t, ev.Decode(&body))
	assert.Equal(t, uint64(9), body["amount"])
	assert.NotEmpty(t, ev.ID)
}
