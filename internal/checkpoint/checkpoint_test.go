package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cp := NewCheckpoint("discovery")
	cp.Tier = 2
	cp.Counters["repos"] = 42
	cp.MarkDone("uniswap/v4-core")
	cp.MarkDone("uniswap/v3-core")
	require.NoError(t, store.Save(cp))

	loaded, err := store.Load("discovery")
	require.NoError(t, err)
	assert.Equal(t, "discovery", loaded.Subsystem)
	assert.Equal(t, "uniswap/v3-core", loaded.LastID)
	assert.Equal(t, 2, loaded.Tier)
	assert.Equal(t, 42, loaded.Counters["repos"])
	assert.True(t, loaded.DoneSet()["uniswap/v4-core"])
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestLoadMissingReturnsFresh(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cp, err := store.Load("enrichment")
	require.NoError(t, err)
	assert.Equal(t, "enrichment", cp.Subsystem)
	assert.Empty(t, cp.LastID)
	assert.NotNil(t, cp.Counters)
}

func TestSaveOverwrites(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cp := NewCheckpoint("collab")
	cp.LastID = "a"
	require.NoError(t, store.Save(cp))
	first := cp.UpdatedAt

	cp.LastID = "b"
	require.NoError(t, store.Save(cp))

	loaded, err := store.Load("collab")
	require.NoError(t, err)
	assert.Equal(t, "b", loaded.LastID)
	assert.False(t, loaded.UpdatedAt.Before(first))
}

func TestClear(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cp := NewCheckpoint("discovery")
	cp.LastID = "x"
	require.NoError(t, store.Save(cp))
	require.NoError(t, store.Clear("discovery"))

	loaded, err := store.Load("discovery")
	require.NoError(t, err)
	assert.Empty(t, loaded.LastID)

	all, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}
