package segment

import (
	"context"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecquery/distance"
	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
)

// MemorySource is an in-memory Source. It backs tests and small
// collections that have been compacted but fit in RAM; BlobSource delegates
// to it after decoding a segment blob.
type MemorySource struct {
	records *memoryRecordReader
	meta    *MetadataReader
	metric  distance.Metric
}

// NewMemorySource builds a source over the given records. Indexes are built
// eagerly. An empty record set yields a source whose readers open as
// (nil, nil).
func NewMemorySource(records []StoredRecord, metric distance.Metric) *MemorySource {
	s := &MemorySource{metric: metric}
	if len(records) == 0 {
		return s
	}

	s.records = newMemoryRecordReader(records)

	byKind := buildSortedIndexes(records)
	s.meta = &MetadataReader{
		Bool:     byKind[metadata.KindBool],
		Int:      byKind[metadata.KindInt],
		Float:    byKind[metadata.KindFloat],
		String:   byKind[metadata.KindString],
		FullText: buildSubstringIndex(records),
	}
	return s
}

// buildSortedIndexes builds the per-kind columnar indexes over records.
func buildSortedIndexes(records []StoredRecord) map[metadata.Kind]*sortedIndex {
	byKind := map[metadata.Kind]*sortedIndex{
		metadata.KindBool:   newSortedIndex(),
		metadata.KindInt:    newSortedIndex(),
		metadata.KindFloat:  newSortedIndex(),
		metadata.KindString: newSortedIndex(),
	}
	for i := range records {
		rec := &records[i]
		for key, val := range rec.Metadata {
			if idx, ok := byKind[val.Kind]; ok {
				idx.add(key, val, rec.Offset)
			}
		}
	}
	for _, idx := range byKind {
		idx.seal()
	}
	return byKind
}

// buildSubstringIndex collects record documents into the full-text index.
func buildSubstringIndex(records []StoredRecord) *substringIndex {
	idx := &substringIndex{documents: make(map[model.OffsetID]string)}
	for i := range records {
		if records[i].Document != "" {
			idx.documents[records[i].Offset] = records[i].Document
		}
	}
	return idx
}

// OpenRecordReader implements Source.
func (s *MemorySource) OpenRecordReader(_ context.Context) (RecordReader, error) {
	if s.records == nil {
		return nil, nil
	}
	return s.records, nil
}

// OpenMetadataReader implements Source.
func (s *MemorySource) OpenMetadataReader(_ context.Context) (*MetadataReader, error) {
	return s.meta, nil
}

// Metric implements Source.
func (s *MemorySource) Metric() distance.Metric {
	return s.metric
}

type memoryRecordReader struct {
	byOffset map[model.OffsetID]StoredRecord
	byUID    map[model.UserID]model.OffsetID
	max      model.OffsetID
}

func newMemoryRecordReader(records []StoredRecord) *memoryRecordReader {
	r := &memoryRecordReader{
		byOffset: make(map[model.OffsetID]StoredRecord, len(records)),
		byUID:    make(map[model.UserID]model.OffsetID, len(records)),
	}
	for _, rec := range records {
		r.byOffset[rec.Offset] = rec
		r.byUID[rec.UserID] = rec.Offset
		if rec.Offset > r.max {
			r.max = rec.Offset
		}
	}
	return r
}

func (r *memoryRecordReader) OffsetForUserID(_ context.Context, uid model.UserID) (model.OffsetID, bool, error) {
	offset, ok := r.byUID[uid]
	return offset, ok, nil
}

func (r *memoryRecordReader) Record(_ context.Context, offset model.OffsetID) (StoredRecord, bool, error) {
	rec, ok := r.byOffset[offset]
	return rec, ok, nil
}

func (r *memoryRecordReader) MaxOffset() model.OffsetID {
	return r.max
}

func (r *memoryRecordReader) Count() uint32 {
	return uint32(len(r.byOffset))
}

// sortedIndex is a columnar metadata index for one value kind: per key, a
// value-sorted list of posting bitmaps. Range lookups are a binary search
// plus a contiguous bitmap union.
type sortedIndex struct {
	keys map[string]*postingList
}

type postingList struct {
	values  []metadata.Value
	offsets []*roaring.Bitmap
}

func newSortedIndex() *sortedIndex {
	return &sortedIndex{keys: make(map[string]*postingList)}
}

// add records offset under key/value. Only valid before seal.
func (idx *sortedIndex) add(key string, value metadata.Value, offset model.OffsetID) {
	pl, ok := idx.keys[key]
	if !ok {
		pl = &postingList{}
		idx.keys[key] = pl
	}
	// Appends are unsorted; seal orders and merges the buckets.
	pl.values = append(pl.values, value)
	bm := roaring.New()
	bm.Add(uint32(offset))
	pl.offsets = append(pl.offsets, bm)
}

// seal sorts each posting list by value and merges duplicate buckets.
func (idx *sortedIndex) seal() {
	for _, pl := range idx.keys {
		sort.Sort(byValue{pl})

		values := pl.values[:0]
		offsets := pl.offsets[:0]
		for i := 0; i < len(pl.values); i++ {
			if len(values) > 0 && values[len(values)-1].Equal(pl.values[i]) {
				offsets[len(offsets)-1].Or(pl.offsets[i])
				continue
			}
			values = append(values, pl.values[i])
			offsets = append(offsets, pl.offsets[i])
		}
		pl.values = values
		pl.offsets = offsets
	}
}

type byValue struct{ pl *postingList }

func (s byValue) Len() int { return len(s.pl.values) }
func (s byValue) Less(i, j int) bool {
	return s.pl.values[i].Compare(s.pl.values[j]) < 0
}
func (s byValue) Swap(i, j int) {
	s.pl.values[i], s.pl.values[j] = s.pl.values[j], s.pl.values[i]
	s.pl.offsets[i], s.pl.offsets[j] = s.pl.offsets[j], s.pl.offsets[i]
}

// scan unions the buckets matching the half-open range implied by op.
func (idx *sortedIndex) scan(key string, value metadata.Value, op metadata.Operator) *roaring.Bitmap {
	pl, ok := idx.keys[key]
	if !ok {
		return roaring.New()
	}

	lo := sort.Search(len(pl.values), func(i int) bool {
		return pl.values[i].Compare(value) >= 0
	})
	exact := lo < len(pl.values) && pl.values[lo].Equal(value)

	var lower, upper int
	switch op {
	case metadata.OpEqual:
		if !exact {
			return roaring.New()
		}
		return pl.offsets[lo].Clone()
	case metadata.OpGreaterThan:
		lower = lo
		if exact {
			lower++
		}
		upper = len(pl.values)
	case metadata.OpGreaterEqual:
		lower, upper = lo, len(pl.values)
	case metadata.OpLessThan:
		lower, upper = 0, lo
	case metadata.OpLessEqual:
		lower, upper = 0, lo
		if exact {
			upper++
		}
	default:
		return roaring.New()
	}

	if upper <= lower {
		return roaring.New()
	}
	return roaring.FastOr(pl.offsets[lower:upper]...)
}

func (idx *sortedIndex) Get(_ context.Context, key string, value metadata.Value) (*roaring.Bitmap, error) {
	return idx.scan(key, value, metadata.OpEqual), nil
}

func (idx *sortedIndex) Gt(_ context.Context, key string, value metadata.Value) (*roaring.Bitmap, error) {
	return idx.scan(key, value, metadata.OpGreaterThan), nil
}

func (idx *sortedIndex) Gte(_ context.Context, key string, value metadata.Value) (*roaring.Bitmap, error) {
	return idx.scan(key, value, metadata.OpGreaterEqual), nil
}

func (idx *sortedIndex) Lt(_ context.Context, key string, value metadata.Value) (*roaring.Bitmap, error) {
	return idx.scan(key, value, metadata.OpLessThan), nil
}

func (idx *sortedIndex) Lte(_ context.Context, key string, value metadata.Value) (*roaring.Bitmap, error) {
	return idx.scan(key, value, metadata.OpLessEqual), nil
}

// substringIndex is a naive full-text index matching documents by
// substring.
type substringIndex struct {
	documents map[model.OffsetID]string
}

func (idx *substringIndex) Search(_ context.Context, query string) (*roaring.Bitmap, error) {
	out := roaring.New()
	for offset, doc := range idx.documents {
		if strings.Contains(doc, query) {
			out.Add(uint32(offset))
		}
	}
	return out, nil
}
