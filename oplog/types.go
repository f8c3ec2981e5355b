package oplog

import (
	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
)

// Operation identifies one raw write operation in the log.
type Operation uint8

const (
	// OpAdd inserts a new record. Ignored if the entity already exists.
	OpAdd Operation = iota
	// OpUpdate overlays fields of an existing record. Ignored if the entity
	// does not exist.
	OpUpdate
	// OpUpsert inserts or fully overwrites a record.
	OpUpsert
	// OpDelete removes an existing record. Ignored if the entity does not
	// exist.
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Record is one raw operation fetched from the write log. Embedding,
// Metadata and Document are optional depending on the operation; nil/empty
// means "not carried by this operation".
type Record struct {
	UserID    model.UserID
	Op        Operation
	Embedding []float32
	Metadata  metadata.Document
	Document  string
}

// Batch is the ordered sequence of raw operations fetched for one query.
// It is the in-process form of the fetched log handle and is never mutated
// after fetching.
type Batch []Record

// FinalOperation is the net effect of the log on one entity after folding
// all of its raw operations against the persisted state.
type FinalOperation uint8

const (
	// FinalInitial means the log touched the entity without changing its
	// persisted state (e.g. an add on an already-persisted entity).
	FinalInitial FinalOperation = iota
	// FinalAddNew means the entity is new in the log and still present.
	FinalAddNew
	// FinalUpdateExisting means a persisted entity was partially updated.
	FinalUpdateExisting
	// FinalOverwriteExisting means a persisted entity was fully replaced.
	FinalOverwriteExisting
	// FinalDeleteExisting means a persisted entity was deleted.
	FinalDeleteExisting
)

func (op FinalOperation) String() string {
	switch op {
	case FinalInitial:
		return "initial"
	case FinalAddNew:
		return "add_new"
	case FinalUpdateExisting:
		return "update_existing"
	case FinalOverwriteExisting:
		return "overwrite_existing"
	case FinalDeleteExisting:
		return "delete_existing"
	default:
		return "unknown"
	}
}

// MaterializedRecord is the final per-entity view after merging the entity's
// raw log operations with its persisted record, if any. It is a read-only
// snapshot; accessors resolve the overlay against the persisted base.
type MaterializedRecord struct {
	Offset model.OffsetID
	UserID model.UserID
	Final  FinalOperation

	// Persisted base (zero values when the entity is log-only).
	baseEmbedding []float32
	baseMetadata  metadata.Document
	baseDocument  string

	// Log overlay (nil/empty when the log did not carry the field).
	overlayEmbedding []float32
	overlayMetadata  metadata.Document
	overlayDocument  string
	hasOverlayDoc    bool
}

// MergedEmbedding returns the effective embedding of the entity.
func (r *MaterializedRecord) MergedEmbedding() []float32 {
	switch r.Final {
	case FinalAddNew, FinalOverwriteExisting:
		return r.overlayEmbedding
	}
	if r.overlayEmbedding != nil {
		return r.overlayEmbedding
	}
	return r.baseEmbedding
}

// MergedMetadata returns the effective metadata of the entity: the persisted
// base overlaid with the log's updates. An overwrite discards the base
// entirely. The result must not be mutated.
func (r *MaterializedRecord) MergedMetadata() metadata.Document {
	switch r.Final {
	case FinalAddNew, FinalOverwriteExisting:
		return r.overlayMetadata
	}
	if len(r.overlayMetadata) == 0 {
		return r.baseMetadata
	}
	if len(r.baseMetadata) == 0 {
		return r.overlayMetadata
	}
	return metadata.Merge(r.baseMetadata, r.overlayMetadata)
}

// MergedDocument returns the effective document text of the entity and
// whether one exists.
func (r *MaterializedRecord) MergedDocument() (string, bool) {
	switch r.Final {
	case FinalAddNew, FinalOverwriteExisting:
		return r.overlayDocument, r.hasOverlayDoc
	}
	if r.hasOverlayDoc {
		return r.overlayDocument, true
	}
	if r.baseDocument != "" {
		return r.baseDocument, true
	}
	return "", false
}

// Materialized is the final per-entity view of one log batch, in log order.
type Materialized []MaterializedRecord
