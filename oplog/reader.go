package oplog

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
)

// keyPostings holds the postings of one metadata key in value order:
// values[i] maps to offsets[i]. The columnar sorted layout makes ordered
// comparisons a binary search plus a contiguous range scan instead of a
// full-index walk.
type keyPostings struct {
	values  []metadata.Value
	offsets []*roaring.Bitmap
}

// MetadataLogReader is a queryable index over one materialized log batch.
// It mimics the layout of the persisted metadata segment so that the same
// filter evaluation can run against either source.
//
// The reader is built in a single pass, is immutable afterwards and is
// local to one query invocation.
type MetadataLogReader struct {
	// postings maps metadata keys to value-sorted posting lists.
	postings map[string]*keyPostings

	// documents maps offsets to document text, excluding deleted entities.
	documents map[model.OffsetID]string

	// touched holds the persisted offsets superseded by the log.
	touched *roaring.Bitmap

	// uidToOffset maps user ids to offsets, excluding deleted entities.
	uidToOffset map[model.UserID]model.OffsetID
}

// NewMetadataLogReader builds the index over a materialized log batch.
func NewMetadataLogReader(logs Materialized) *MetadataLogReader {
	r := &MetadataLogReader{
		postings:    make(map[string]*keyPostings),
		documents:   make(map[model.OffsetID]string),
		touched:     roaring.New(),
		uidToOffset: make(map[model.UserID]model.OffsetID, len(logs)),
	}

	building := make(map[string]map[string]*postingsEntry)

	for i := range logs {
		rec := &logs[i]
		if rec.Final != FinalInitial && rec.Final != FinalAddNew {
			r.touched.Add(uint32(rec.Offset))
		}
		if rec.Final == FinalDeleteExisting {
			continue
		}
		r.uidToOffset[rec.UserID] = rec.Offset
		for key, val := range rec.MergedMetadata() {
			byValue, ok := building[key]
			if !ok {
				byValue = make(map[string]*postingsEntry)
				building[key] = byValue
			}
			vk := val.Key()
			entry, ok := byValue[vk]
			if !ok {
				entry = &postingsEntry{value: val, offsets: roaring.New()}
				byValue[vk] = entry
			}
			entry.offsets.Add(uint32(rec.Offset))
		}
		if doc, ok := rec.MergedDocument(); ok {
			r.documents[rec.Offset] = doc
		}
	}

	for key, byValue := range building {
		kp := &keyPostings{
			values:  make([]metadata.Value, 0, len(byValue)),
			offsets: make([]*roaring.Bitmap, 0, len(byValue)),
		}
		entries := make([]*postingsEntry, 0, len(byValue))
		for _, e := range byValue {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].value.Compare(entries[j].value) < 0
		})
		for _, e := range entries {
			kp.values = append(kp.values, e.value)
			kp.offsets = append(kp.offsets, e.offsets)
		}
		r.postings[key] = kp
	}

	return r
}

type postingsEntry struct {
	value   metadata.Value
	offsets *roaring.Bitmap
}

// Get returns the offsets whose value for key satisfies "value op filter".
// Ordered comparisons union the buckets inside the implied half-open range.
// A missing key yields an empty bitmap, never an error.
//
// OpNotEqual must be rewritten as Exclude(OpEqual) above the provider layer
// and never reaches this method.
func (r *MetadataLogReader) Get(key string, value metadata.Value, op metadata.Operator) *roaring.Bitmap {
	kp, ok := r.postings[key]
	if !ok {
		return roaring.New()
	}

	// Binary search for the first bucket >= value within the sorted order.
	lo := sort.Search(len(kp.values), func(i int) bool {
		return kp.values[i].Compare(value) >= 0
	})
	exact := lo < len(kp.values) && kp.values[lo].Equal(value)

	var lower, upper int // bucket range [lower, upper)
	switch op {
	case metadata.OpEqual:
		if !exact {
			return roaring.New()
		}
		return kp.offsets[lo].Clone()
	case metadata.OpGreaterThan:
		lower = lo
		if exact {
			lower++
		}
		upper = len(kp.values)
	case metadata.OpGreaterEqual:
		lower, upper = lo, len(kp.values)
	case metadata.OpLessThan:
		lower, upper = 0, lo
	case metadata.OpLessEqual:
		lower, upper = 0, lo
		if exact {
			upper++
		}
	case metadata.OpNotEqual:
		panic("oplog: inequality must be rewritten above the metadata provider")
	default:
		return roaring.New()
	}

	if upper <= lower {
		return roaring.New()
	}
	return roaring.FastOr(kp.offsets[lower:upper]...)
}

// SearchUserIDs maps the given user ids to their offsets, silently dropping
// ids unknown to the log.
func (r *MetadataLogReader) SearchUserIDs(uids []model.UserID) *roaring.Bitmap {
	out := roaring.New()
	for _, uid := range uids {
		if offset, ok := r.uidToOffset[uid]; ok {
			out.Add(uint32(offset))
		}
	}
	return out
}

// SearchDocuments returns the offsets of log-resident documents containing
// the substring.
func (r *MetadataLogReader) SearchDocuments(query string) *roaring.Bitmap {
	out := roaring.New()
	for offset, doc := range r.documents {
		if strings.Contains(doc, query) {
			out.Add(uint32(offset))
		}
	}
	return out
}

// Touched returns the persisted offsets superseded (modified or deleted) by
// the log. Callers must treat the bitmap as read-only.
func (r *MetadataLogReader) Touched() *roaring.Bitmap {
	return r.touched
}
