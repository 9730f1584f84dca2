package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckpoint_PutAndGetLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp1, err := s.PutCheckpoint(ctx, "thread-1", map[string]any{"messages": []string{"hi"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, cp1.Version)

	cp2, err := s.PutCheckpoint(ctx, "thread-1", map[string]any{"messages": []string{"hi", "there"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, cp2.Version)

	latest, err := s.GetLatestCheckpoint(ctx, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.EqualValues(t, 2, latest.Version)
}

func TestCheckpoint_GetLatestMissingThreadReturnsNil(t *testing.T) {
	s := newTestStore(t)
	latest, err := s.GetLatestCheckpoint(context.Background(), "no-such-thread")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestCheckpoint_ListReturnsAllVersionsInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.PutCheckpoint(ctx, "thread-2", map[string]any{"i": i})
		require.NoError(t, err)
	}

	list, err := s.ListCheckpoints(ctx, "thread-2")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.EqualValues(t, 1, list[0].Version)
	assert.EqualValues(t, 3, list[2].Version)
}

func TestMemory_PutIsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := "memories:user-1"

	_, err := s.PutMemory(ctx, ns, "favorite_color", map[string]any{"content": "blue"})
	require.NoError(t, err)

	entry, err := s.GetMemory(ctx, ns, "favorite_color")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "blue", entry.Value["content"])

	_, err = s.PutMemory(ctx, ns, "favorite_color", map[string]any{"content": "green"})
	require.NoError(t, err)

	entry, err = s.GetMemory(ctx, ns, "favorite_color")
	require.NoError(t, err)
	assert.Equal(t, "green", entry.Value["content"])
}

func TestMemory_GetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	entry, err := s.GetMemory(context.Background(), "memories:user-1", "nope")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemory_SearchOrdersByMostRecentlyUpdated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := "memories:user-2"

	_, err := s.PutMemory(ctx, ns, "a", map[string]any{"content": "1"})
	require.NoError(t, err)
	_, err = s.PutMemory(ctx, ns, "b", map[string]any{"content": "2"})
	require.NoError(t, err)

	entries, err := s.SearchMemory(ctx, ns, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Key)
}
