package selection

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Sign tells whether a Signed set enumerates its members or its complement.
type Sign uint8

const (
	// SignInclude means the bitmap enumerates the selected identifiers.
	SignInclude Sign = iota
	// SignExclude means the bitmap enumerates the identifiers NOT selected;
	// everything else in the identifier space is selected.
	SignExclude
)

// Signed is a compact representation of a subset of offset identifiers as
// either an explicit inclusion set or the complement of an explicit
// exclusion set. The universe is never enumerated, so "almost everything"
// and "almost nothing" stay equally cheap.
//
// Signed values are immutable: And and Or return fresh sets and never
// modify their operands or the bitmaps handed to Include/Exclude after
// construction is complete.
type Signed struct {
	sign Sign
	bm   *roaring.Bitmap
}

// Include wraps bm as an inclusion set. The caller must not mutate bm
// afterwards.
func Include(bm *roaring.Bitmap) Signed {
	if bm == nil {
		bm = roaring.New()
	}
	return Signed{sign: SignInclude, bm: bm}
}

// Exclude wraps bm as an exclusion set. The caller must not mutate bm
// afterwards.
func Exclude(bm *roaring.Bitmap) Signed {
	if bm == nil {
		bm = roaring.New()
	}
	return Signed{sign: SignExclude, bm: bm}
}

// Empty returns the selection containing no identifiers: Include(∅).
func Empty() Signed {
	return Include(roaring.New())
}

// Full returns the selection containing every identifier: Exclude(∅).
func Full() Signed {
	return Exclude(roaring.New())
}

// Sign returns whether s is an inclusion or an exclusion set.
func (s Signed) Sign() Sign {
	return s.sign
}

// Bitmap returns the underlying bitmap. Callers must treat it as read-only.
func (s Signed) Bitmap() *roaring.Bitmap {
	return s.bm
}

// Contains reports whether id is selected.
func (s Signed) Contains(id uint32) bool {
	if s.sign == SignInclude {
		return s.bm.Contains(id)
	}
	return !s.bm.Contains(id)
}

// IsEmpty reports whether no identifier is selected. Only an inclusion set
// can be provably empty; an exclusion set always selects the unbounded rest
// of the identifier space.
func (s Signed) IsEmpty() bool {
	return s.sign == SignInclude && s.bm.IsEmpty()
}

// IsFull reports whether every identifier is selected.
func (s Signed) IsFull() bool {
	return s.sign == SignExclude && s.bm.IsEmpty()
}

// And intersects two signed sets:
//
//	Include(A) ∧ Include(B) = Include(A∩B)
//	Include(A) ∧ Exclude(B) = Include(A\B)
//	Exclude(A) ∧ Include(B) = Include(B\A)
//	Exclude(A) ∧ Exclude(B) = Exclude(A∪B)
func (s Signed) And(other Signed) Signed {
	switch {
	case s.sign == SignInclude && other.sign == SignInclude:
		return Include(roaring.And(s.bm, other.bm))
	case s.sign == SignInclude && other.sign == SignExclude:
		return Include(roaring.AndNot(s.bm, other.bm))
	case s.sign == SignExclude && other.sign == SignInclude:
		return Include(roaring.AndNot(other.bm, s.bm))
	default:
		return Exclude(roaring.Or(s.bm, other.bm))
	}
}

// Or unions two signed sets:
//
//	Include(A) ∨ Include(B) = Include(A∪B)
//	Include(A) ∨ Exclude(B) = Exclude(B\A)
//	Exclude(A) ∨ Include(B) = Exclude(A\B)
//	Exclude(A) ∨ Exclude(B) = Exclude(A∩B)
func (s Signed) Or(other Signed) Signed {
	switch {
	case s.sign == SignInclude && other.sign == SignInclude:
		return Include(roaring.Or(s.bm, other.bm))
	case s.sign == SignInclude && other.sign == SignExclude:
		return Exclude(roaring.AndNot(other.bm, s.bm))
	case s.sign == SignExclude && other.sign == SignInclude:
		return Exclude(roaring.AndNot(s.bm, other.bm))
	default:
		return Exclude(roaring.And(s.bm, other.bm))
	}
}

// Materialize resolves s against a concrete universe of identifiers,
// returning the selected members as a plain bitmap. Neither operand is
// modified.
func (s Signed) Materialize(universe *roaring.Bitmap) *roaring.Bitmap {
	if s.sign == SignInclude {
		return roaring.And(s.bm, universe)
	}
	return roaring.AndNot(universe, s.bm)
}

// String returns a compact debug representation.
func (s Signed) String() string {
	if s.sign == SignInclude {
		return fmt.Sprintf("include(%d)", s.bm.GetCardinality())
	}
	return fmt.Sprintf("exclude(%d)", s.bm.GetCardinality())
}
