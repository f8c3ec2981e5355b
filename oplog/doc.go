// Package oplog materializes batches of write operations into a per-entity
// view and exposes that view through a queryable in-memory metadata index.
//
// A batch is replayed in order against the persisted state: later operations
// on the same entity fold into earlier ones, so each entity surfaces exactly
// once with a single final operation. The resulting MetadataLogReader serves
// the same lookups as the persisted metadata segment, which lets filter
// evaluation treat both sides uniformly.
package oplog
