package segment

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecquery/distance"
	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
)

// StoredRecord is the persisted view of one record.
type StoredRecord struct {
	Offset    model.OffsetID
	UserID    model.UserID
	Embedding []float32
	Metadata  metadata.Document
	Document  string
}

// RecordReader reads persisted records. Implementations may perform I/O;
// every method is a potential suspension point and honors ctx cancellation.
type RecordReader interface {
	// OffsetForUserID resolves a user identifier to its offset.
	// The second return is false if the user id is not persisted.
	OffsetForUserID(ctx context.Context, uid model.UserID) (model.OffsetID, bool, error)

	// Record returns the persisted record at offset.
	// The second return is false if the offset is unoccupied.
	Record(ctx context.Context, offset model.OffsetID) (StoredRecord, bool, error)

	// MaxOffset returns the highest offset in use, or 0 if the segment is
	// empty. New log entities are assigned offsets past this watermark.
	MaxOffset() model.OffsetID

	// Count returns the number of persisted records.
	Count() uint32
}

// IndexReader is one typed metadata sub-index (one per value kind).
// A missing key yields an empty bitmap, never an error.
type IndexReader interface {
	// Get returns the offsets whose value for key equals value.
	Get(ctx context.Context, key string, value metadata.Value) (*roaring.Bitmap, error)
	// Gt returns the offsets whose value for key is greater than value.
	Gt(ctx context.Context, key string, value metadata.Value) (*roaring.Bitmap, error)
	// Gte returns the offsets whose value for key is greater than or equal to value.
	Gte(ctx context.Context, key string, value metadata.Value) (*roaring.Bitmap, error)
	// Lt returns the offsets whose value for key is less than value.
	Lt(ctx context.Context, key string, value metadata.Value) (*roaring.Bitmap, error)
	// Lte returns the offsets whose value for key is less than or equal to value.
	Lte(ctx context.Context, key string, value metadata.Value) (*roaring.Bitmap, error)
}

// FullTextReader searches the persisted document index.
type FullTextReader interface {
	// Search returns the offsets whose document contains the substring.
	Search(ctx context.Context, query string) (*roaring.Bitmap, error)
}

// MetadataReader bundles the typed sub-indexes and the full-text index of
// one persisted segment. Any reader may be nil when the segment carries no
// index for that kind; queries against a nil reader yield empty results.
type MetadataReader struct {
	Bool     IndexReader
	Int      IndexReader
	Float    IndexReader
	String   IndexReader
	FullText FullTextReader
}

// ReaderFor selects the typed sub-index matching the value's kind.
// Returns nil if the segment has no index for that kind.
func (r *MetadataReader) ReaderFor(v metadata.Value) IndexReader {
	if r == nil {
		return nil
	}
	switch v.Kind {
	case metadata.KindBool:
		return r.Bool
	case metadata.KindInt:
		return r.Int
	case metadata.KindFloat:
		return r.Float
	case metadata.KindString:
		return r.String
	default:
		return nil
	}
}

// Source constructs the readers of one persisted segment. Construction may
// perform I/O (open blobs, decode indexes) and is invoked lazily by Handle.
type Source interface {
	// OpenRecordReader opens the record reader, or returns (nil, nil) if the
	// segment has no persisted records yet.
	OpenRecordReader(ctx context.Context) (RecordReader, error)

	// OpenMetadataReader opens the metadata/full-text index reader, or
	// returns (nil, nil) if the segment has no persisted index yet.
	OpenMetadataReader(ctx context.Context) (*MetadataReader, error)

	// Metric returns the distance metric the segment was configured with.
	Metric() distance.Metric
}
