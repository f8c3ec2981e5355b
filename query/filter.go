package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
	"github.com/hupe1980/vecquery/oplog"
	"github.com/hupe1980/vecquery/segment"
	"github.com/hupe1980/vecquery/selection"
)

// ErrIncompleteInput is returned when an operator runs without a required
// input.
var ErrIncompleteInput = errors.New("operator input incomplete")

// FilterInput carries both sides of the collection plus the optional user
// filters.
type FilterInput struct {
	// Logs is the materialized write log.
	Logs oplog.Materialized

	// LogReader indexes Logs. Required.
	LogReader *oplog.MetadataLogReader

	// Segment opens the compacted side. Required; a segment with no
	// persisted data opens nil readers.
	Segment *segment.Handle

	// QueryIDs restricts the result to the given user ids. Nil means no
	// restriction; an empty non-nil slice selects nothing.
	QueryIDs []model.UserID

	// Where is the optional filter expression.
	Where metadata.Where
}

// FilterOutput is the filtered view of both domains.
type FilterOutput struct {
	// LogOffsets are the selected offsets of log-resident records.
	LogOffsets *roaring.Bitmap

	// CompactOffsets is the signed selection over persisted offsets.
	// Persisted rows superseded by the log are already excluded, so the two
	// domains never overlap.
	CompactOffsets selection.Signed
}

// FilterOperator resolves user id and metadata filters against the log and
// the compacted segment in one pass.
type FilterOperator struct {
	logger *slog.Logger
}

// NewFilterOperator creates a filter operator. logger may be nil.
func NewFilterOperator(logger *slog.Logger) *FilterOperator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterOperator{logger: logger}
}

// Run evaluates the filters. Both sides evaluate concurrently; the log side
// materializes into concrete offsets while the persisted side stays signed
// so downstream operators can keep "almost everything" cheap.
func (o *FilterOperator) Run(ctx context.Context, in FilterInput) (FilterOutput, error) {
	if in.LogReader == nil || in.Segment == nil {
		return FilterOutput{}, fmt.Errorf("%w: filter needs log reader and segment", ErrIncompleteInput)
	}

	records, err := in.Segment.RecordReader(ctx)
	if err != nil {
		return FilterOutput{}, fmt.Errorf("open record reader: %w", err)
	}
	meta, err := in.Segment.MetadataReader(ctx)
	if err != nil {
		return FilterOutput{}, fmt.Errorf("open metadata reader: %w", err)
	}

	logProvider := NewLogProvider(in.LogReader)
	segmentProvider := NewSegmentProvider(meta, records)

	logSel := selection.Full()
	compactSel := selection.Full()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := evaluateSide(gctx, in, logProvider)
		if err != nil {
			return fmt.Errorf("filter log side: %w", err)
		}
		logSel = s
		return nil
	})
	// Without persisted records there is nothing for an id restriction to
	// narrow; the compact side stays unrestricted instead of collapsing to
	// Include(∅).
	segIn := in
	if records == nil {
		segIn.QueryIDs = nil
	}
	g.Go(func() error {
		s, err := evaluateSide(gctx, segIn, segmentProvider)
		if err != nil {
			return fmt.Errorf("filter segment side: %w", err)
		}
		compactSel = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return FilterOutput{}, err
	}

	// Persisted rows the log superseded must never surface from the
	// segment; their current state lives in the log.
	compactSel = compactSel.And(selection.Exclude(in.LogReader.Touched()))

	out := FilterOutput{
		LogOffsets:     logSel.Materialize(activeLogOffsets(in.Logs)),
		CompactOffsets: compactSel,
	}

	o.logger.DebugContext(ctx, "filter completed",
		"log_matches", out.LogOffsets.GetCardinality(),
		"compact_sign", out.CompactOffsets.Sign(),
		"compact_cardinality", out.CompactOffsets.Bitmap().GetCardinality(),
	)
	return out, nil
}

// evaluateSide applies the user id restriction and the where expression
// against one provider.
func evaluateSide(ctx context.Context, in FilterInput, provider MetadataProvider) (selection.Signed, error) {
	sel := selection.Full()

	if in.QueryIDs != nil {
		bm, err := provider.SearchUserIDs(ctx, in.QueryIDs)
		if err != nil {
			return selection.Signed{}, fmt.Errorf("resolve user ids: %w", err)
		}
		sel = sel.And(selection.Include(bm))
	}

	if in.Where != nil {
		s, err := Evaluate(ctx, in.Where, provider)
		if err != nil {
			return selection.Signed{}, err
		}
		sel = sel.And(s)
	}

	return sel, nil
}

// activeLogOffsets collects the offsets of log records that still exist.
func activeLogOffsets(logs oplog.Materialized) *roaring.Bitmap {
	universe := roaring.New()
	for i := range logs {
		if logs[i].Final != oplog.FinalDeleteExisting {
			universe.Add(uint32(logs[i].Offset))
		}
	}
	return universe
}
