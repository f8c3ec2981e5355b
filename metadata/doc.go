// Package metadata provides the typed value model and the filter expression
// trees evaluated by the query core.
//
// Values are a small tagged union (bool, int, float, string) with interned
// strings and a stable Key() encoding for inverted indexes. Ordering is
// defined only within one kind; indexes never mix kinds in a bucket.
//
// Where trees combine primitive comparisons, set membership tests and
// document substring tests under AND/OR junctions of arbitrary depth.
package metadata
