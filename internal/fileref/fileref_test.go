package fileref

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutTakeRoundtrip(t *testing.T) {
	store := New(DefaultTTL, DefaultSweepInterval)
	defer store.Stop()

	ref, err := store.Put([]byte("image-bytes"), "image/png")
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	entry, ok := store.Take(ref)
	require.True(t, ok)
	assert.Equal(t, []byte("image-bytes"), entry.Bytes)
	assert.Equal(t, "image/png", entry.ContentType)
}

func TestTakeAllowsMultipleReads(t *testing.T) {
	store := New(DefaultTTL, DefaultSweepInterval)
	defer store.Stop()

	ref, err := store.Put([]byte("x"), "image/png")
	require.NoError(t, err)

	_, ok1 := store.Take(ref)
	_, ok2 := store.Take(ref)
	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestTakeMissingRef(t *testing.T) {
	store := New(DefaultTTL, DefaultSweepInterval)
	defer store.Stop()

	_, ok := store.Take("does-not-exist")
	assert.False(t, ok)
}

func TestRefExpiresAfterTTL(t *testing.T) {
	store := New(30*time.Millisecond, 10*time.Millisecond)
	defer store.Stop()

	ref, err := store.Put([]byte("x"), "image/png")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	_, ok := store.Take(ref)
	assert.False(t, ok)
}
