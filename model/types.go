package model

import (
	"fmt"
)

// OffsetID is an unsigned 32-bit identifier addressing one logical record
// slot within a segment's lifetime. It is stable across the write log and
// persisted storage for the same logical entity.
type OffsetID uint32

// UserID is the user-facing stable identifier of a record.
type UserID string

// Location identifies a record in one domain of the store.
type Location struct {
	Domain Domain
	Offset OffsetID
}

// Domain distinguishes the two data sources a query reconciles.
type Domain uint8

const (
	// DomainLog addresses records resident in the not-yet-compacted write log.
	DomainLog Domain = iota
	// DomainCompact addresses records in the persisted, indexed segment.
	DomainCompact
)

// String returns a string representation of the Location.
func (l Location) String() string {
	switch l.Domain {
	case DomainLog:
		return fmt.Sprintf("log:%d", l.Offset)
	case DomainCompact:
		return fmt.Sprintf("compact:%d", l.Offset)
	default:
		return fmt.Sprintf("unknown:%d", l.Offset)
	}
}
