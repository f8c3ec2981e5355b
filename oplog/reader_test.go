package oplog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
	"github.com/hupe1980/vecquery/segment"
)

func buildReader(t *testing.T, batch Batch, persisted ...segment.StoredRecord) *MetadataLogReader {
	t.Helper()

	var reader segment.RecordReader
	if len(persisted) > 0 {
		reader = newFakeRecordReader(persisted...)
	}
	logs, err := Materialize(context.Background(), batch, reader)
	require.NoError(t, err)
	return NewMetadataLogReader(logs)
}

func TestLogReaderRangeQueries(t *testing.T) {
	batch := Batch{
		{UserID: "a", Op: OpAdd, Metadata: metadata.Document{"val": metadata.Int(1)}},
		{UserID: "b", Op: OpAdd, Metadata: metadata.Document{"val": metadata.Int(3)}},
		{UserID: "c", Op: OpAdd, Metadata: metadata.Document{"val": metadata.Int(5)}},
		{UserID: "d", Op: OpAdd, Metadata: metadata.Document{"val": metadata.Int(7)}},
	}
	r := buildReader(t, batch)

	// Offsets are assigned 1..4 in batch order.
	tests := []struct {
		name string
		op   metadata.Operator
		v    int64
		want []uint32
	}{
		{"gt strictly above", metadata.OpGreaterThan, 3, []uint32{3, 4}},
		{"gt between buckets", metadata.OpGreaterThan, 4, []uint32{3, 4}},
		{"gte includes bound", metadata.OpGreaterEqual, 3, []uint32{2, 3, 4}},
		{"lt strictly below", metadata.OpLessThan, 5, []uint32{1, 2}},
		{"lte includes bound", metadata.OpLessEqual, 5, []uint32{1, 2, 3}},
		{"eq exact", metadata.OpEqual, 3, []uint32{2}},
		{"eq missing bucket", metadata.OpEqual, 4, []uint32{}},
		{"gt above all", metadata.OpGreaterThan, 7, []uint32{}},
		{"lt below all", metadata.OpLessThan, 1, []uint32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Get("val", metadata.Int(tt.v), tt.op)
			assert.Equal(t, tt.want, got.ToArray())
		})
	}
}

func TestLogReaderMissingKey(t *testing.T) {
	r := buildReader(t, Batch{
		{UserID: "a", Op: OpAdd, Metadata: metadata.Document{"val": metadata.Int(1)}},
	})

	got := r.Get("nope", metadata.Int(1), metadata.OpEqual)
	assert.True(t, got.IsEmpty())
}

func TestLogReaderInequalityPanics(t *testing.T) {
	r := buildReader(t, Batch{
		{UserID: "a", Op: OpAdd, Metadata: metadata.Document{"val": metadata.Int(1)}},
	})

	assert.Panics(t, func() {
		r.Get("val", metadata.Int(1), metadata.OpNotEqual)
	})
}

func TestLogReaderStringValues(t *testing.T) {
	batch := Batch{
		{UserID: "a", Op: OpAdd, Metadata: metadata.Document{"color": metadata.String("blue")}},
		{UserID: "b", Op: OpAdd, Metadata: metadata.Document{"color": metadata.String("red")}},
		{UserID: "c", Op: OpAdd, Metadata: metadata.Document{"color": metadata.String("blue")}},
	}
	r := buildReader(t, batch)

	got := r.Get("color", metadata.String("blue"), metadata.OpEqual)
	assert.Equal(t, []uint32{1, 3}, got.ToArray())

	// Lexicographic range over strings.
	got = r.Get("color", metadata.String("green"), metadata.OpGreaterThan)
	assert.Equal(t, []uint32{2}, got.ToArray())
}

func TestLogReaderTouched(t *testing.T) {
	persisted := []segment.StoredRecord{
		{Offset: 1, UserID: "a", Metadata: metadata.Document{"val": metadata.Int(1)}},
		{Offset: 2, UserID: "b", Metadata: metadata.Document{"val": metadata.Int(2)}},
		{Offset: 3, UserID: "c", Metadata: metadata.Document{"val": metadata.Int(3)}},
	}

	batch := Batch{
		{UserID: "a", Op: OpUpdate, Metadata: metadata.Document{"val": metadata.Int(10)}},
		{UserID: "b", Op: OpDelete},
		{UserID: "d", Op: OpAdd, Metadata: metadata.Document{"val": metadata.Int(4)}},
	}
	r := buildReader(t, batch, persisted...)

	// Updated and deleted persisted offsets are touched; untouched persisted
	// rows and brand-new log rows are not.
	assert.Equal(t, []uint32{1, 2}, r.Touched().ToArray())
}

func TestLogReaderExcludesDeleted(t *testing.T) {
	persisted := []segment.StoredRecord{
		{Offset: 1, UserID: "a", Metadata: metadata.Document{"val": metadata.Int(1)}, Document: "gone"},
	}
	batch := Batch{
		{UserID: "a", Op: OpDelete},
	}
	r := buildReader(t, batch, persisted...)

	assert.True(t, r.Get("val", metadata.Int(1), metadata.OpEqual).IsEmpty())
	assert.True(t, r.SearchUserIDs([]model.UserID{"a"}).IsEmpty())
	assert.True(t, r.SearchDocuments("gone").IsEmpty())
}

func TestLogReaderSearchUserIDs(t *testing.T) {
	batch := Batch{
		{UserID: "a", Op: OpAdd},
		{UserID: "b", Op: OpAdd},
	}
	r := buildReader(t, batch)

	got := r.SearchUserIDs([]model.UserID{"b", "ghost", "a"})
	assert.Equal(t, []uint32{1, 2}, got.ToArray())
}

func TestLogReaderSearchDocuments(t *testing.T) {
	batch := Batch{
		{UserID: "a", Op: OpAdd, Document: "the quick brown fox"},
		{UserID: "b", Op: OpAdd, Document: "lazy dog"},
		{UserID: "c", Op: OpAdd},
	}
	r := buildReader(t, batch)

	got := r.SearchDocuments("quick")
	assert.Equal(t, []uint32{1}, got.ToArray())

	assert.True(t, r.SearchDocuments("zebra").IsEmpty())
}
