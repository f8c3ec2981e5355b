// Package query implements the read path over a collection's two domains:
// the materialized write log and the compacted segment.
//
// FilterOperator resolves user id and metadata filters into per-domain
// selections, masking persisted rows the log has superseded. KnnLogOperator
// brute-force scores the filtered log records. Executor bounds the
// concurrency of operator fan-out across queries.
//
// Filter expressions evaluate into signed selections (package selection),
// so negated predicates stay cheap regardless of collection size.
package query
