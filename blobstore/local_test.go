package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "seg/0001/index", []byte("payload")))

	blob, err := store.Open(ctx, "seg/0001/index")
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(7), blob.Size())

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestLocalStoreOpenMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	_, err := store.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "b", []byte("one")))
	require.NoError(t, store.Put(ctx, "b", []byte("two")))

	blob, err := store.Open(ctx, "b")
	require.NoError(t, err)
	defer blob.Close()

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}

func TestLocalStoreReadRange(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "b", []byte("0123456789")))

	blob, err := store.Open(ctx, "b")
	require.NoError(t, err)
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 2, 5)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("23456"), data)
}

func TestLocalStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "seg/a", nil))
	require.NoError(t, store.Put(ctx, "seg/b", nil))
	require.NoError(t, store.Put(ctx, "manifest", nil))

	names, err := store.List(ctx, "seg/")
	require.NoError(t, err)
	assert.Equal(t, []string{"seg/a", "seg/b"}, names)

	require.NoError(t, store.Delete(ctx, "seg/a"))
	require.NoError(t, store.Delete(ctx, "seg/a"))

	names, err = store.List(ctx, "seg/")
	require.NoError(t, err)
	assert.Equal(t, []string{"seg/b"}, names)
}
