package query

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecquery/distance"
	"github.com/hupe1980/vecquery/model"
	"github.com/hupe1980/vecquery/oplog"
)

// Distance is one scored record. Lower measures are closer.
type Distance struct {
	Location model.Location
	Measure  float32
}

// KnnLogInput selects the log records to score against the query vector.
type KnnLogInput struct {
	// Logs is the materialized write log.
	Logs oplog.Materialized

	// LogOffsets restricts scoring to the filtered log records.
	LogOffsets *roaring.Bitmap

	// Query is the query embedding.
	Query []float32

	// K bounds the result size.
	K int

	// Metric selects the distance function.
	Metric distance.Metric
}

// KnnLogOutput holds the k nearest log records in ascending distance order.
type KnnLogOutput struct {
	Distances []Distance
}

// KnnLogOperator brute-force scores the filtered log records. The log is
// bounded by compaction thresholds, so a linear scan with a bounded heap
// beats maintaining a vector index over data this short-lived.
type KnnLogOperator struct {
	logger *slog.Logger
}

// NewKnnLogOperator creates a knn-over-log operator. logger may be nil.
func NewKnnLogOperator(logger *slog.Logger) *KnnLogOperator {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnnLogOperator{logger: logger}
}

// Run scores the selected log records and keeps the k nearest.
func (o *KnnLogOperator) Run(ctx context.Context, in KnnLogInput) (KnnLogOutput, error) {
	if in.LogOffsets == nil {
		return KnnLogOutput{}, fmt.Errorf("%w: knn needs filtered log offsets", ErrIncompleteInput)
	}
	if in.K <= 0 || in.LogOffsets.IsEmpty() {
		return KnnLogOutput{}, nil
	}

	distFn, err := distance.Provider(in.Metric)
	if err != nil {
		return KnnLogOutput{}, err
	}

	query := in.Query
	if in.Metric == distance.MetricCosine {
		query = distance.Normalize(query)
	}

	heap := distHeap{}
	for i := range in.Logs {
		if err := ctx.Err(); err != nil {
			return KnnLogOutput{}, err
		}
		rec := &in.Logs[i]
		if rec.Final == oplog.FinalDeleteExisting {
			continue
		}
		if !in.LogOffsets.Contains(uint32(rec.Offset)) {
			continue
		}
		embedding := rec.MergedEmbedding()
		if embedding == nil {
			continue
		}
		if in.Metric == distance.MetricCosine {
			embedding = distance.Normalize(embedding)
		}

		heap.pushBounded(Distance{
			Location: model.Location{Domain: model.DomainLog, Offset: rec.Offset},
			Measure:  distFn(query, embedding),
		}, in.K)
	}

	out := KnnLogOutput{Distances: heap.sorted()}

	o.logger.DebugContext(ctx, "knn over log completed",
		"k", in.K,
		"candidates", in.LogOffsets.GetCardinality(),
		"results", len(out.Distances),
	)
	return out, nil
}

// MergeDistances merges ascending-sorted distance lists into the k nearest
// overall, preserving ascending order.
func MergeDistances(k int, lists ...[]Distance) []Distance {
	if k <= 0 {
		return nil
	}

	var total int
	for _, list := range lists {
		total += len(list)
	}
	merged := make([]Distance, 0, total)
	for _, list := range lists {
		merged = append(merged, list...)
	}
	sortDistances(merged)

	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

// totalOrderKey maps a float32 onto integers so that the usual ordering
// holds and NaN sorts above every number, matching IEEE 754 total ordering.
func totalOrderKey(f float32) uint32 {
	b := math.Float32bits(f)
	if b&0x80000000 != 0 {
		return ^b
	}
	return b | 0x80000000
}

// lessDistance orders by measure, then offset for determinism.
func lessDistance(a, b Distance) bool {
	ka, kb := totalOrderKey(a.Measure), totalOrderKey(b.Measure)
	if ka != kb {
		return ka < kb
	}
	return a.Location.Offset < b.Location.Offset
}

func sortDistances(ds []Distance) {
	sort.Slice(ds, func(i, j int) bool { return lessDistance(ds[i], ds[j]) })
}

// distHeap is a value-based bounded max-heap over Distance. The root holds
// the worst kept candidate, so a full heap rejects or replaces in O(log k)
// without allocations.
type distHeap struct {
	items []Distance
}

func (h *distHeap) pushBounded(item Distance, capacity int) {
	if len(h.items) < capacity {
		h.items = append(h.items, item)
		h.siftUp(len(h.items) - 1)
		return
	}
	if lessDistance(item, h.items[0]) {
		h.items[0] = item
		h.siftDown(0)
	}
}

// sorted drains the heap into ascending order.
func (h *distHeap) sorted() []Distance {
	if len(h.items) == 0 {
		return nil
	}
	out := h.items
	h.items = nil
	sortDistances(out)
	return out
}

func (h *distHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !lessDistance(h.items[parent], h.items[i]) {
			return
		}
		h.items[parent], h.items[i] = h.items[i], h.items[parent]
		i = parent
	}
}

func (h *distHeap) siftDown(i int) {
	n := len(h.items)
	for {
		largest := i
		if l := 2*i + 1; l < n && lessDistance(h.items[largest], h.items[l]) {
			largest = l
		}
		if r := 2*i + 2; r < n && lessDistance(h.items[largest], h.items[r]) {
			largest = r
		}
		if largest == i {
			return
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}
