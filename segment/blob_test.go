package segment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecquery/blobstore"
	"github.com/hupe1980/vecquery/distance"
	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
)

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	records := testRecords()

	require.NoError(t, WriteBlob(ctx, store, "seg/0001", records, distance.MetricCosine))

	src, err := OpenBlobSource(ctx, store, "seg/0001")
	require.NoError(t, err)
	assert.Equal(t, distance.MetricCosine, src.Metric())

	reader, err := src.OpenRecordReader(ctx)
	require.NoError(t, err)
	require.NotNil(t, reader)
	assert.Equal(t, uint32(3), reader.Count())
	assert.Equal(t, model.OffsetID(3), reader.MaxOffset())

	rec, ok, err := reader.Record(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.UserID("a"), rec.UserID)
	assert.Equal(t, []float32{1, 0}, rec.Embedding)
	assert.True(t, rec.Metadata["val"].Equal(metadata.Int(1)))
	assert.True(t, rec.Metadata["color"].Equal(metadata.String("blue")))
	assert.Equal(t, "the quick brown fox", rec.Document)

	meta, err := src.OpenMetadataReader(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)

	got, err := meta.Int.Gt(ctx, "val", metadata.Int(1))
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3}, got.ToArray())

	got, err = meta.String.Get(ctx, "color", metadata.String("red"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, got.ToArray())

	got, err = meta.Bool.Get(ctx, "active", metadata.Bool(true))
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, got.ToArray())

	got, err = meta.Float.Lte(ctx, "score", metadata.Float(0.5))
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, got.ToArray())

	got, err = meta.FullText.Search(ctx, "lazy")
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, got.ToArray())
}

func TestBlobRoundTripEmpty(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	require.NoError(t, WriteBlob(ctx, store, "seg/empty", nil, distance.MetricL2))

	src, err := OpenBlobSource(ctx, store, "seg/empty")
	require.NoError(t, err)

	reader, err := src.OpenRecordReader(ctx)
	require.NoError(t, err)
	assert.Nil(t, reader)
}

func TestOpenBlobSourceMissing(t *testing.T) {
	store := blobstore.NewMemoryStore()

	_, err := OpenBlobSource(context.Background(), store, "nope")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestOpenBlobSourceRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "bad", []byte("this is not a segment blob, not even close")))

	_, err := OpenBlobSource(ctx, store, "bad")
	assert.ErrorIs(t, err, ErrMalformedBlob)
}

func TestOpenBlobSourceRejectsTruncated(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	require.NoError(t, WriteBlob(ctx, store, "seg", testRecords(), distance.MetricL2))

	blob, err := store.Open(ctx, "seg")
	require.NoError(t, err)
	data, err := blobstore.ReadAll(ctx, blob)
	require.NoError(t, err)
	require.NoError(t, blob.Close())

	require.NoError(t, store.Put(ctx, "seg", data[:len(data)-8]))

	_, err = OpenBlobSource(ctx, store, "seg")
	assert.Error(t, err)
}
