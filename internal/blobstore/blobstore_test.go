package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundtrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	key, err := store.Put([]byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	data, blob, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", blob.MimeType)
}

func TestPutIsIdempotentForSameBytes(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	key1, err := store.Put([]byte("same"), "image/png")
	require.NoError(t, err)
	key2, err := store.Put([]byte("same"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
}

func TestGetMissingKey(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get("does-not-exist")
	assert.Error(t, err)
}

func TestURL(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/storage/abc123", store.URL("abc123"))
}
