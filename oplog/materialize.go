package oplog

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
	"github.com/hupe1980/vecquery/segment"
)

// Materialize folds a raw operation batch against the persisted record
// reader into one final-state view per entity, in first-touch log order.
//
// reader may be nil when the segment has no persisted data yet; every
// operation then resolves purely within the log. Entities that net out to
// nothing (added and deleted within one batch) are dropped from the result.
//
// Offset assignment: entities present in persisted storage keep their
// persisted offset; new entities receive consecutive offsets past the
// persisted watermark, in order of first appearance.
func Materialize(ctx context.Context, batch Batch, reader segment.RecordReader) (Materialized, error) {
	next := model.OffsetID(1)
	if reader != nil {
		next = reader.MaxOffset() + 1
	}

	out := make(Materialized, 0, len(batch))
	byUID := make(map[model.UserID]int, len(batch))

	// resolve returns the working entry for uid, loading the persisted base
	// on first touch. ok is false if the entity exists nowhere yet.
	resolve := func(uid model.UserID) (*MaterializedRecord, bool, error) {
		if idx, seen := byUID[uid]; seen {
			if out[idx].Final == FinalDeleteExisting || out[idx].Offset == 0 {
				// Deleted earlier in this batch; only an add/upsert revives it.
				return &out[idx], false, nil
			}
			return &out[idx], true, nil
		}
		if reader != nil {
			offset, found, err := reader.OffsetForUserID(ctx, uid)
			if err != nil {
				return nil, false, fmt.Errorf("resolve user id %q: %w", uid, err)
			}
			if found {
				stored, present, err := reader.Record(ctx, offset)
				if err != nil {
					return nil, false, fmt.Errorf("load record %d: %w", offset, err)
				}
				if present {
					out = append(out, MaterializedRecord{
						Offset:        offset,
						UserID:        uid,
						Final:         FinalInitial,
						baseEmbedding: stored.Embedding,
						baseMetadata:  stored.Metadata,
						baseDocument:  stored.Document,
					})
					byUID[uid] = len(out) - 1
					return &out[len(out)-1], true, nil
				}
			}
		}
		out = append(out, MaterializedRecord{UserID: uid, Final: FinalDeleteExisting})
		byUID[uid] = len(out) - 1
		return &out[len(out)-1], false, nil
	}

	for i := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op := &batch[i]
		entry, exists, err := resolve(op.UserID)
		if err != nil {
			return nil, err
		}

		switch op.Op {
		case OpAdd:
			if exists {
				// Adds are not overwrites; the entity keeps its state.
				continue
			}
			revived := entry.Offset != 0
			entry.Offset = nextOffset(entry.Offset, &next)
			if revived {
				// The persisted row at this offset is superseded.
				entry.Final = FinalOverwriteExisting
			} else {
				entry.Final = FinalAddNew
			}
			entry.overlayEmbedding = op.Embedding
			entry.overlayMetadata = op.Metadata
			entry.overlayDocument = op.Document
			entry.hasOverlayDoc = op.Document != ""

		case OpUpdate:
			if !exists {
				continue
			}
			applyOverlay(entry, op)
			if entry.Final == FinalInitial {
				entry.Final = FinalUpdateExisting
			}

		case OpUpsert:
			if exists {
				if entry.Final == FinalAddNew {
					// Still log-only: overwrite within the log.
					entry.overlayEmbedding = op.Embedding
					entry.overlayMetadata = op.Metadata
					entry.overlayDocument = op.Document
					entry.hasOverlayDoc = op.Document != ""
				} else {
					entry.Final = FinalOverwriteExisting
					entry.overlayEmbedding = op.Embedding
					entry.overlayMetadata = op.Metadata
					entry.overlayDocument = op.Document
					entry.hasOverlayDoc = op.Document != ""
				}
				continue
			}
			revived := entry.Offset != 0
			entry.Offset = nextOffset(entry.Offset, &next)
			if revived {
				entry.Final = FinalOverwriteExisting
			} else {
				entry.Final = FinalAddNew
			}
			entry.overlayEmbedding = op.Embedding
			entry.overlayMetadata = op.Metadata
			entry.overlayDocument = op.Document
			entry.hasOverlayDoc = op.Document != ""

		case OpDelete:
			if !exists {
				continue
			}
			if entry.Final == FinalAddNew {
				// Added and deleted within one batch: net nothing.
				// Keep the slot but neutralize it below.
				entry.Final = FinalDeleteExisting
				entry.Offset = 0
				entry.overlayEmbedding = nil
				entry.overlayMetadata = nil
				entry.overlayDocument = ""
				entry.hasOverlayDoc = false
				continue
			}
			entry.Final = FinalDeleteExisting
			entry.overlayEmbedding = nil
			entry.overlayMetadata = nil
			entry.overlayDocument = ""
			entry.hasOverlayDoc = false

		default:
			return nil, fmt.Errorf("materialize: unknown operation %d", op.Op)
		}
	}

	// Drop entities that net out to nothing: placeholder deletes for
	// never-existing entities and add-then-delete pairs.
	compact := out[:0]
	for i := range out {
		if out[i].Offset == 0 {
			continue
		}
		compact = append(compact, out[i])
	}
	return compact, nil
}

// nextOffset keeps an already-assigned offset, otherwise takes the next one.
func nextOffset(current model.OffsetID, next *model.OffsetID) model.OffsetID {
	if current != 0 {
		return current
	}
	offset := *next
	*next++
	return offset
}

// applyOverlay merges an update operation into the working entry.
func applyOverlay(entry *MaterializedRecord, op *Record) {
	if op.Embedding != nil {
		entry.overlayEmbedding = op.Embedding
	}
	if len(op.Metadata) > 0 {
		if len(entry.overlayMetadata) == 0 {
			entry.overlayMetadata = op.Metadata
		} else {
			entry.overlayMetadata = metadata.Merge(entry.overlayMetadata, op.Metadata)
		}
	}
	if op.Document != "" {
		entry.overlayDocument = op.Document
		entry.hasOverlayDoc = true
	}
}
