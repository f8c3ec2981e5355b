package query

import (
	"context"
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecquery/distance"
	"github.com/hupe1980/vecquery/model"
	"github.com/hupe1980/vecquery/oplog"
	"github.com/hupe1980/vecquery/segment"
)

func knnLogs(t *testing.T, embeddings ...[]float32) (oplog.Materialized, *roaring.Bitmap) {
	t.Helper()

	batch := make(oplog.Batch, 0, len(embeddings))
	for i, e := range embeddings {
		batch = append(batch, oplog.Record{
			UserID:    model.UserID(string(rune('a' + i))),
			Op:        oplog.OpAdd,
			Embedding: e,
		})
	}
	logs, err := oplog.Materialize(context.Background(), batch, nil)
	require.NoError(t, err)

	offsets := roaring.New()
	for i := range logs {
		offsets.Add(uint32(logs[i].Offset))
	}
	return logs, offsets
}

func resultOffsets(ds []Distance) []uint32 {
	out := make([]uint32, 0, len(ds))
	for _, d := range ds {
		out = append(out, uint32(d.Location.Offset))
	}
	return out
}

func TestKnnLogAscendingOrder(t *testing.T) {
	ctx := context.Background()
	logs, offsets := knnLogs(t,
		[]float32{10, 0}, // offset 1, dist 100
		[]float32{1, 0},  // offset 2, dist 1
		[]float32{3, 0},  // offset 3, dist 9
	)

	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: offsets,
		Query:      []float32{0, 0},
		K:          3,
		Metric:     distance.MetricL2,
	})
	require.NoError(t, err)

	assert.Equal(t, []uint32{2, 3, 1}, resultOffsets(out.Distances))
	assert.Equal(t, float32(1), out.Distances[0].Measure)
	assert.Equal(t, float32(9), out.Distances[1].Measure)
	assert.Equal(t, float32(100), out.Distances[2].Measure)
	for _, d := range out.Distances {
		assert.Equal(t, model.DomainLog, d.Location.Domain)
	}
}

func TestKnnLogFewerThanK(t *testing.T) {
	ctx := context.Background()
	logs, offsets := knnLogs(t, []float32{1, 0}, []float32{2, 0})

	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: offsets,
		Query:      []float32{0, 0},
		K:          10,
		Metric:     distance.MetricL2,
	})
	require.NoError(t, err)
	assert.Len(t, out.Distances, 2)
}

func TestKnnLogBoundsToK(t *testing.T) {
	ctx := context.Background()
	logs, offsets := knnLogs(t,
		[]float32{5, 0}, []float32{1, 0}, []float32{4, 0}, []float32{2, 0}, []float32{3, 0},
	)

	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: offsets,
		Query:      []float32{0, 0},
		K:          2,
		Metric:     distance.MetricL2,
	})
	require.NoError(t, err)

	assert.Equal(t, []uint32{2, 4}, resultOffsets(out.Distances))
}

func TestKnnLogRespectsOffsetFilter(t *testing.T) {
	ctx := context.Background()
	logs, _ := knnLogs(t, []float32{1, 0}, []float32{2, 0}, []float32{3, 0})

	filtered := roaring.BitmapOf(2, 3)
	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: filtered,
		Query:      []float32{0, 0},
		K:          10,
		Metric:     distance.MetricL2,
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3}, resultOffsets(out.Distances))
}

func TestKnnLogCosine(t *testing.T) {
	ctx := context.Background()

	// Same direction at different magnitudes must score identically under
	// cosine; the orthogonal vector scores worst.
	logs, offsets := knnLogs(t,
		[]float32{1, 0},
		[]float32{100, 0},
		[]float32{0, 1},
	)

	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: offsets,
		Query:      []float32{2, 0},
		K:          3,
		Metric:     distance.MetricCosine,
	})
	require.NoError(t, err)
	require.Len(t, out.Distances, 3)

	assert.InDelta(t, 0, out.Distances[0].Measure, 1e-6)
	assert.InDelta(t, 0, out.Distances[1].Measure, 1e-6)
	assert.Equal(t, uint32(3), uint32(out.Distances[2].Location.Offset))
	assert.InDelta(t, 1, out.Distances[2].Measure, 1e-6)
}

func TestKnnLogInnerProduct(t *testing.T) {
	ctx := context.Background()
	logs, offsets := knnLogs(t,
		[]float32{1, 0}, // 1 - dot = 0
		[]float32{3, 0}, // 1 - dot = -2
	)

	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: offsets,
		Query:      []float32{1, 0},
		K:          2,
		Metric:     distance.MetricInnerProduct,
	})
	require.NoError(t, err)

	// Larger dot products rank first.
	assert.Equal(t, []uint32{2, 1}, resultOffsets(out.Distances))
	assert.Equal(t, float32(-2), out.Distances[0].Measure)
}

func TestKnnLogEmptyCases(t *testing.T) {
	ctx := context.Background()
	logs, offsets := knnLogs(t, []float32{1, 0})
	op := NewKnnLogOperator(nil)

	out, err := op.Run(ctx, KnnLogInput{Logs: logs, LogOffsets: roaring.New(), Query: []float32{0, 0}, K: 5, Metric: distance.MetricL2})
	require.NoError(t, err)
	assert.Empty(t, out.Distances)

	out, err = op.Run(ctx, KnnLogInput{Logs: logs, LogOffsets: offsets, Query: []float32{0, 0}, K: 0, Metric: distance.MetricL2})
	require.NoError(t, err)
	assert.Empty(t, out.Distances)

	_, err = op.Run(ctx, KnnLogInput{Logs: logs, Query: []float32{0, 0}, K: 5, Metric: distance.MetricL2})
	assert.ErrorIs(t, err, ErrIncompleteInput)
}

func TestKnnLogNaNSortsLast(t *testing.T) {
	ctx := context.Background()
	nan := float32(math.NaN())
	logs, offsets := knnLogs(t,
		[]float32{nan, nan},
		[]float32{1, 0},
	)

	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: offsets,
		Query:      []float32{0, 0},
		K:          2,
		Metric:     distance.MetricL2,
	})
	require.NoError(t, err)
	require.Len(t, out.Distances, 2)

	assert.Equal(t, uint32(2), uint32(out.Distances[0].Location.Offset))
	assert.True(t, math.IsNaN(float64(out.Distances[1].Measure)))
}

func TestMergeDistances(t *testing.T) {
	a := []Distance{
		{Location: model.Location{Domain: model.DomainLog, Offset: 1}, Measure: 0.1},
		{Location: model.Location{Domain: model.DomainLog, Offset: 2}, Measure: 0.5},
	}
	b := []Distance{
		{Location: model.Location{Domain: model.DomainCompact, Offset: 9}, Measure: 0.2},
		{Location: model.Location{Domain: model.DomainCompact, Offset: 4}, Measure: 0.7},
	}

	got := MergeDistances(3, a, b)
	require.Len(t, got, 3)
	assert.Equal(t, float32(0.1), got[0].Measure)
	assert.Equal(t, float32(0.2), got[1].Measure)
	assert.Equal(t, float32(0.5), got[2].Measure)

	assert.Empty(t, MergeDistances(0, a, b))
	assert.Len(t, MergeDistances(10, a, b), 4)
}

func TestKnnLogDuplicateDistancesAtBoundary(t *testing.T) {
	ctx := context.Background()
	logs, offsets := knnLogs(t,
		[]float32{0, 0}, // offset 1, dist 0
		[]float32{1, 0}, // offset 2, dist 1
		[]float32{1, 0}, // offset 3, dist 1
		[]float32{1, 0}, // offset 4, dist 1
		[]float32{2, 0}, // offset 5, dist 4
	)

	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: offsets,
		Query:      []float32{0, 0},
		K:          3,
		Metric:     distance.MetricL2,
	})
	require.NoError(t, err)

	// Three records tie at distance 1 while only two slots remain after
	// the exact match. Ties fill until k is exhausted, lowest offsets
	// first.
	require.Len(t, out.Distances, 3)
	assert.Equal(t, []uint32{1, 2, 3}, resultOffsets(out.Distances))
	assert.Equal(t, float32(1), out.Distances[1].Measure)
	assert.Equal(t, float32(1), out.Distances[2].Measure)
}

func TestKnnLogSkipsDeletedRecords(t *testing.T) {
	ctx := context.Background()

	src := segment.NewMemorySource([]segment.StoredRecord{
		{Offset: 1, UserID: "a", Embedding: []float32{1, 0}},
	}, distance.MetricL2)
	reader, err := src.OpenRecordReader(ctx)
	require.NoError(t, err)

	logs, err := oplog.Materialize(ctx, oplog.Batch{
		{UserID: "a", Op: oplog.OpDelete},
		{UserID: "b", Op: oplog.OpAdd, Embedding: []float32{5, 0}},
	}, reader)
	require.NoError(t, err)

	// A caller-built bitmap naming the deleted offset must not resurrect
	// the stale persisted embedding.
	out, err := NewKnnLogOperator(nil).Run(ctx, KnnLogInput{
		Logs:       logs,
		LogOffsets: roaring.BitmapOf(1, 2),
		Query:      []float32{0, 0},
		K:          10,
		Metric:     distance.MetricL2,
	})
	require.NoError(t, err)

	assert.Equal(t, []uint32{2}, resultOffsets(out.Distances))
}
