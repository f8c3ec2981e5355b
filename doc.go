// Package vecquery executes filtered vector queries over collections that
// split into a compacted segment and an unflushed write log.
//
// The write log is materialized per query into one final state per entity
// (package oplog). Metadata and user id filters evaluate against both the
// log and the compacted segment (package query) into signed selections
// (package selection), and the log side is brute-force scored against the
// query embedding. The persisted side's selection feeds whatever vector
// index serves the compacted segment.
//
// Collection ties these pieces together:
//
//	src, err := segment.OpenBlobSource(ctx, store, "seg/0001")
//	if err != nil { ... }
//	coll := vecquery.New(src)
//	res, err := coll.Query(ctx, vecquery.Request{
//	    Batch: pending,
//	    Where: metadata.And(
//	        metadata.Gt("price", metadata.Float(9.99)),
//	        metadata.Ne("status", metadata.String("archived")),
//	    ),
//	    Query: embedding,
//	    K:     10,
//	})
package vecquery
