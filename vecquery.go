package vecquery

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
	"github.com/hupe1980/vecquery/oplog"
	"github.com/hupe1980/vecquery/query"
	"github.com/hupe1980/vecquery/segment"
	"github.com/hupe1980/vecquery/selection"
)

// Collection is the query surface over one collection: its compacted
// segment plus the unflushed write log supplied per request.
//
// A Collection is safe for concurrent use.
type Collection struct {
	handle   *segment.Handle
	executor *query.Executor
	logger   *Logger

	filterOp *query.FilterOperator
	knnOp    *query.KnnLogOperator
}

// New creates a Collection over the given segment source.
func New(source segment.Source, optFns ...func(o *Options)) *Collection {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Collection{
		handle:   segment.NewHandle(source),
		executor: query.NewExecutor(opts.MaxConcurrency),
		logger:   opts.Logger,
		filterOp: query.NewFilterOperator(opts.Logger.Logger),
		knnOp:    query.NewKnnLogOperator(opts.Logger.Logger),
	}
}

// Request describes one query. Batch carries the writes not yet compacted;
// the remaining fields are all optional.
type Request struct {
	// Batch is the unflushed write log, applied over the segment.
	Batch oplog.Batch

	// QueryIDs restricts results to the given user ids. Nil means no
	// restriction.
	QueryIDs []model.UserID

	// Where is the metadata filter expression.
	Where metadata.Where

	// Query is the knn query embedding. Nil skips vector scoring.
	Query []float32

	// K bounds the number of scored results.
	K int
}

// Result is the per-domain outcome of one query.
type Result struct {
	// LogOffsets are the filtered log-resident offsets.
	LogOffsets *roaring.Bitmap

	// CompactOffsets is the signed selection over persisted offsets, with
	// log-superseded rows already excluded. A vector index over the
	// segment consumes this as its allow-list.
	CompactOffsets selection.Signed

	// LogDistances are the k nearest filtered log records, ascending.
	// Empty when the request carried no query embedding.
	LogDistances []query.Distance
}

// Query materializes the batch, filters both domains and, when an
// embedding is present, scores the log side.
func (c *Collection) Query(ctx context.Context, req Request) (Result, error) {
	reader, err := c.handle.RecordReader(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open record reader: %w", err)
	}

	logs, err := oplog.Materialize(ctx, req.Batch, reader)
	c.logger.LogMaterialize(ctx, len(req.Batch), len(logs), err)
	if err != nil {
		return Result{}, fmt.Errorf("materialize log: %w", err)
	}

	filtered, err := c.filterOp.Run(ctx, query.FilterInput{
		Logs:      logs,
		LogReader: oplog.NewMetadataLogReader(logs),
		Segment:   c.handle,
		QueryIDs:  req.QueryIDs,
		Where:     req.Where,
	})
	if err != nil {
		c.logger.LogFilter(ctx, 0, err)
		return Result{}, err
	}
	c.logger.LogFilter(ctx, filtered.LogOffsets.GetCardinality(), nil)

	result := Result{
		LogOffsets:     filtered.LogOffsets,
		CompactOffsets: filtered.CompactOffsets,
	}

	if req.Query == nil {
		return result, nil
	}

	err = c.executor.Run(ctx, func(ctx context.Context) error {
		out, err := c.knnOp.Run(ctx, query.KnnLogInput{
			Logs:       logs,
			LogOffsets: filtered.LogOffsets,
			Query:      req.Query,
			K:          req.K,
			Metric:     c.handle.Metric(),
		})
		if err != nil {
			return err
		}
		result.LogDistances = out.Distances
		return nil
	})
	c.logger.LogKnn(ctx, req.K, len(result.LogDistances), err)
	if err != nil {
		return Result{}, err
	}

	return result, nil
}
