package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyCorpusDir, "/srv/corpus"))

	val, ok := store.Get(KeyCorpusDir)
	assert.True(t, ok)
	assert.Equal(t, "/srv/corpus", val)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyRemoteModel, "text-embedding-3-small"))
	require.NoError(t, store.Set(KeyChunkTokens, 500))
	require.NoError(t, store.Set(KeyRemoteThreshold, 0.3))
	require.NoError(t, store.Set("watch.enabled", true))

	assert.Equal(t, "text-embedding-3-small", store.GetString(KeyRemoteModel))
	assert.Equal(t, 500, store.GetInt(KeyChunkTokens))
	assert.Equal(t, 0.3, store.GetFloat(KeyRemoteThreshold))
	assert.True(t, store.GetBool("watch.enabled"))

	// Missing or mistyped keys fall back to zero values.
	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetInt(KeyRemoteModel))
	assert.Zero(t, store.GetFloat("missing"))
	assert.False(t, store.GetBool(KeyRemoteModel))
}

func TestConfigStore_GetFloatWidensIntegers(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyIngestRateLimit, 3))
	assert.Equal(t, 3.0, store.GetFloat(KeyIngestRateLimit))
}

func TestConfigStore_PersistsAcrossLoads(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyLocalModel, "all-minilm"))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", reloaded.GetString(KeyLocalModel))
}

func TestConfigStore_LoadFlattensNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	raw := "[embedding.remote]\nmodel = \"text-embedding-3-small\"\nthreshold = 0.3\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(raw), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", store.GetString(KeyRemoteModel))
	assert.Equal(t, 0.3, store.GetFloat(KeyRemoteThreshold))
}

func TestConfigStore_MissingFileStartsEmpty(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Get("anything")
	assert.False(t, ok)
}
