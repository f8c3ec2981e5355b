package query

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
	"github.com/hupe1980/vecquery/oplog"
	"github.com/hupe1980/vecquery/segment"
)

// MetadataProvider answers primitive metadata lookups for one side of a
// collection: either the materialized write log or the compacted segment.
// Filter evaluation runs the same expression against both sides through
// this interface.
//
// Lookup only receives equality and ordered operators; inequality is
// rewritten as an exclusion above this layer and must never reach a
// provider.
type MetadataProvider interface {
	// Lookup returns the offsets whose value for key satisfies op against
	// value. A missing key yields an empty bitmap.
	Lookup(ctx context.Context, key string, value metadata.Value, op metadata.Operator) (*roaring.Bitmap, error)

	// SearchDocuments returns the offsets whose document contains the
	// substring.
	SearchDocuments(ctx context.Context, query string) (*roaring.Bitmap, error)

	// SearchUserIDs maps user ids to offsets, silently dropping unknown ids.
	SearchUserIDs(ctx context.Context, uids []model.UserID) (*roaring.Bitmap, error)
}

// LogProvider serves metadata lookups from a materialized log reader.
type LogProvider struct {
	reader *oplog.MetadataLogReader
}

// NewLogProvider creates a provider over the given log reader.
func NewLogProvider(reader *oplog.MetadataLogReader) *LogProvider {
	return &LogProvider{reader: reader}
}

// Lookup implements MetadataProvider.
func (p *LogProvider) Lookup(_ context.Context, key string, value metadata.Value, op metadata.Operator) (*roaring.Bitmap, error) {
	return p.reader.Get(key, value, op), nil
}

// SearchDocuments implements MetadataProvider.
func (p *LogProvider) SearchDocuments(_ context.Context, query string) (*roaring.Bitmap, error) {
	return p.reader.SearchDocuments(query), nil
}

// SearchUserIDs implements MetadataProvider.
func (p *LogProvider) SearchUserIDs(_ context.Context, uids []model.UserID) (*roaring.Bitmap, error) {
	return p.reader.SearchUserIDs(uids), nil
}

// SegmentProvider serves metadata lookups from the compacted segment's
// typed indexes. Either reader may be nil when the segment has no persisted
// data; lookups then yield empty results.
type SegmentProvider struct {
	meta    *segment.MetadataReader
	records segment.RecordReader
}

// NewSegmentProvider creates a provider over the given segment readers.
func NewSegmentProvider(meta *segment.MetadataReader, records segment.RecordReader) *SegmentProvider {
	return &SegmentProvider{meta: meta, records: records}
}

// Lookup implements MetadataProvider.
func (p *SegmentProvider) Lookup(ctx context.Context, key string, value metadata.Value, op metadata.Operator) (*roaring.Bitmap, error) {
	reader := p.meta.ReaderFor(value)
	if reader == nil {
		return roaring.New(), nil
	}

	switch op {
	case metadata.OpEqual:
		return reader.Get(ctx, key, value)
	case metadata.OpGreaterThan:
		return reader.Gt(ctx, key, value)
	case metadata.OpGreaterEqual:
		return reader.Gte(ctx, key, value)
	case metadata.OpLessThan:
		return reader.Lt(ctx, key, value)
	case metadata.OpLessEqual:
		return reader.Lte(ctx, key, value)
	case metadata.OpNotEqual:
		panic("query: inequality must be rewritten above the metadata provider")
	default:
		return roaring.New(), nil
	}
}

// SearchDocuments implements MetadataProvider.
func (p *SegmentProvider) SearchDocuments(ctx context.Context, query string) (*roaring.Bitmap, error) {
	if p.meta == nil || p.meta.FullText == nil {
		return roaring.New(), nil
	}
	return p.meta.FullText.Search(ctx, query)
}

// SearchUserIDs implements MetadataProvider.
func (p *SegmentProvider) SearchUserIDs(ctx context.Context, uids []model.UserID) (*roaring.Bitmap, error) {
	out := roaring.New()
	if p.records == nil {
		return out, nil
	}
	for _, uid := range uids {
		offset, ok, err := p.records.OffsetForUserID(ctx, uid)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Add(uint32(offset))
		}
	}
	return out, nil
}
