package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "seg/0001", []byte("hello world")))

	blob, err := store.Open(ctx, "seg/0001")
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(11), blob.Size())

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestMemoryStoreOpenMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReadAt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "b", []byte("0123456789")))

	blob, err := store.Open(ctx, "b")
	require.NoError(t, err)
	defer blob.Close()

	p := make([]byte, 4)
	n, err := blob.ReadAt(ctx, p, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("3456"), p)

	// Read past the end.
	n, err = blob.ReadAt(ctx, p, 8)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
}

func TestMemoryStoreOpenHandleIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "b", []byte("before")))

	blob, err := store.Open(ctx, "b")
	require.NoError(t, err)
	defer blob.Close()

	require.NoError(t, store.Put(ctx, "b", []byte("after!")))

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("before"), data)
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "seg/b", nil))
	require.NoError(t, store.Put(ctx, "seg/a", nil))
	require.NoError(t, store.Put(ctx, "other", nil))

	names, err := store.List(ctx, "seg/")
	require.NoError(t, err)
	assert.Equal(t, []string{"seg/a", "seg/b"}, names)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "b", []byte("x")))
	require.NoError(t, store.Delete(ctx, "b"))
	require.NoError(t, store.Delete(ctx, "b"))

	_, err := store.Open(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}
