package segment

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/vecquery/distance"
)

// Handle is a fetched segment: a lazily-constructed view over one persisted
// segment's readers plus its distance configuration. Readers are opened at
// most once and shared by every borrower for the duration of a query set.
//
// Handle is safe for concurrent use. It never mutates the underlying
// segment; all reads operate on an immutable snapshot.
type Handle struct {
	source Source

	recordOnce sync.Once
	record     RecordReader
	recordErr  error

	metaOnce sync.Once
	meta     *MetadataReader
	metaErr  error
}

// NewHandle wraps a source into a fetched segment handle.
func NewHandle(source Source) *Handle {
	return &Handle{source: source}
}

// RecordReader opens (once) and returns the record reader.
// Returns nil without error if the segment has no persisted records yet.
func (h *Handle) RecordReader(ctx context.Context) (RecordReader, error) {
	h.recordOnce.Do(func() {
		h.record, h.recordErr = h.source.OpenRecordReader(ctx)
		if h.recordErr != nil {
			h.recordErr = fmt.Errorf("open record reader: %w", h.recordErr)
		}
	})
	return h.record, h.recordErr
}

// MetadataReader opens (once) and returns the metadata index reader.
// Returns nil without error if the segment has no persisted index yet.
func (h *Handle) MetadataReader(ctx context.Context) (*MetadataReader, error) {
	h.metaOnce.Do(func() {
		h.meta, h.metaErr = h.source.OpenMetadataReader(ctx)
		if h.metaErr != nil {
			h.metaErr = fmt.Errorf("open metadata reader: %w", h.metaErr)
		}
	})
	return h.meta, h.metaErr
}

// Metric returns the distance metric the segment was configured with.
func (h *Handle) Metric() distance.Metric {
	return h.source.Metric()
}
