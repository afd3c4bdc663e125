package authstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := Open(path)

	require.NoError(t, store.Set("access", "tok-123"))

	v, ok, err := store.Get("access")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-123", v)
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := Open(path)

	_, ok, err := store.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadMissingFileReturnsEmptyMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	store := Open(path)

	all, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeleteRemovesKeyPreservesOthers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := Open(path)

	require.NoError(t, store.Set("access", "a"))
	require.NoError(t, store.Set("refresh", "r"))
	require.NoError(t, store.Delete("access"))

	_, ok, _ := store.Get("access")
	assert.False(t, ok)

	v, ok, _ := store.Get("refresh")
	assert.True(t, ok)
	assert.Equal(t, "r", v)
}
