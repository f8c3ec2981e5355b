// Package selection implements signed selection sets: an algebraic
// representation of selected identifier subsets as either an explicit
// inclusion set or an explicit exclusion set (implicit universe complement),
// backed by roaring bitmaps.
//
// The AND/OR operators combine mixed signs correctly, which lets filter
// evaluation represent negations ("everything except these rows") without
// ever materializing the identifier universe.
package selection
