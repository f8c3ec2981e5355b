package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecquery/distance"
	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/segment"
	"github.com/hupe1980/vecquery/selection"
)

// segmentProviderOver builds a provider over an in-memory compacted
// segment.
func segmentProviderOver(t *testing.T, records []segment.StoredRecord) *SegmentProvider {
	t.Helper()

	ctx := context.Background()
	src := segment.NewMemorySource(records, distance.MetricL2)
	meta, err := src.OpenMetadataReader(ctx)
	require.NoError(t, err)
	reader, err := src.OpenRecordReader(ctx)
	require.NoError(t, err)
	return NewSegmentProvider(meta, reader)
}

func whereTestProvider(t *testing.T) *SegmentProvider {
	t.Helper()

	return segmentProviderOver(t, []segment.StoredRecord{
		{Offset: 1, UserID: "a", Metadata: metadata.Document{"val": metadata.Int(1), "color": metadata.String("blue")}, Document: "alpha beta"},
		{Offset: 2, UserID: "b", Metadata: metadata.Document{"val": metadata.Int(3), "color": metadata.String("red")}, Document: "beta gamma"},
		{Offset: 3, UserID: "c", Metadata: metadata.Document{"val": metadata.Int(5)}},
		{Offset: 4, UserID: "d", Metadata: metadata.Document{"val": metadata.Int(7), "color": metadata.String("blue")}},
	})
}

func TestEvaluateComparisons(t *testing.T) {
	ctx := context.Background()
	p := whereTestProvider(t)

	tests := []struct {
		name     string
		where    metadata.Where
		sign     selection.Sign
		contents []uint32
	}{
		{"eq", metadata.Eq("val", metadata.Int(3)), selection.SignInclude, []uint32{2}},
		{"gt", metadata.Gt("val", metadata.Int(3)), selection.SignInclude, []uint32{3, 4}},
		{"gte", metadata.Gte("val", metadata.Int(3)), selection.SignInclude, []uint32{2, 3, 4}},
		{"lt", metadata.Lt("val", metadata.Int(5)), selection.SignInclude, []uint32{1, 2}},
		{"lte", metadata.Lte("val", metadata.Int(5)), selection.SignInclude, []uint32{1, 2, 3}},
		{"ne", metadata.Ne("color", metadata.String("red")), selection.SignExclude, []uint32{2}},
		{"in", metadata.In("val", metadata.Int(1), metadata.Int(7)), selection.SignInclude, []uint32{1, 4}},
		{"nin", metadata.NotIn("val", metadata.Int(1), metadata.Int(7)), selection.SignExclude, []uint32{1, 4}},
		{"contains", metadata.Contains("beta"), selection.SignInclude, []uint32{1, 2}},
		{"not contains", metadata.NotContains("beta"), selection.SignExclude, []uint32{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(ctx, tt.where, p)
			require.NoError(t, err)
			assert.Equal(t, tt.sign, got.Sign())
			assert.Equal(t, tt.contents, got.Bitmap().ToArray())
		})
	}
}

func TestEvaluateInequalitySelectsRecordsWithoutKey(t *testing.T) {
	ctx := context.Background()
	p := whereTestProvider(t)

	// Offset 3 has no "color" at all; != must select it.
	got, err := Evaluate(ctx, metadata.Ne("color", metadata.String("blue")), p)
	require.NoError(t, err)

	assert.True(t, got.Contains(2))
	assert.True(t, got.Contains(3))
	assert.False(t, got.Contains(1))
	assert.False(t, got.Contains(4))
}

func TestEvaluateJunctions(t *testing.T) {
	ctx := context.Background()
	p := whereTestProvider(t)

	// val > 1 AND color == blue  ->  {4}
	got, err := Evaluate(ctx, metadata.And(
		metadata.Gt("val", metadata.Int(1)),
		metadata.Eq("color", metadata.String("blue")),
	), p)
	require.NoError(t, err)
	assert.Equal(t, selection.SignInclude, got.Sign())
	assert.Equal(t, []uint32{4}, got.Bitmap().ToArray())

	// val == 1 OR val == 5  ->  {1, 3}
	got, err = Evaluate(ctx, metadata.Or(
		metadata.Eq("val", metadata.Int(1)),
		metadata.Eq("val", metadata.Int(5)),
	), p)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, got.Bitmap().ToArray())

	// val > 1 AND val != 7: Exclude folds into the conjunction.
	got, err = Evaluate(ctx, metadata.And(
		metadata.Gt("val", metadata.Int(1)),
		metadata.Ne("val", metadata.Int(7)),
	), p)
	require.NoError(t, err)
	assert.Equal(t, selection.SignInclude, got.Sign())
	assert.Equal(t, []uint32{2, 3}, got.Bitmap().ToArray())
}

func TestEvaluateNestedJunction(t *testing.T) {
	ctx := context.Background()
	p := whereTestProvider(t)

	// (val < 5 OR val == 7) AND color != red  ->  {1, 4}
	got, err := Evaluate(ctx, metadata.And(
		metadata.Or(
			metadata.Lt("val", metadata.Int(5)),
			metadata.Eq("val", metadata.Int(7)),
		),
		metadata.Ne("color", metadata.String("red")),
	), p)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 4}, got.Bitmap().ToArray())
}

func TestEvaluateEmptyJunctionIdentities(t *testing.T) {
	ctx := context.Background()
	p := whereTestProvider(t)

	got, err := Evaluate(ctx, metadata.And(), p)
	require.NoError(t, err)
	assert.True(t, got.IsFull())

	got, err = Evaluate(ctx, metadata.Or(), p)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestEvaluateMissingKey(t *testing.T) {
	ctx := context.Background()
	p := whereTestProvider(t)

	got, err := Evaluate(ctx, metadata.Eq("missing", metadata.Int(1)), p)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	// Negated lookup on a missing key selects everything.
	got, err = Evaluate(ctx, metadata.Ne("missing", metadata.Int(1)), p)
	require.NoError(t, err)
	assert.True(t, got.IsFull())
}

func TestEvaluateEmptySegment(t *testing.T) {
	ctx := context.Background()
	p := NewSegmentProvider(nil, nil)

	got, err := Evaluate(ctx, metadata.Eq("val", metadata.Int(1)), p)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	got, err = Evaluate(ctx, metadata.Contains("beta"), p)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}
