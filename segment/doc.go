// Package segment provides read access to compacted collection data: the
// record store, the typed metadata indexes and the full-text index.
//
// A Source constructs readers lazily; Handle memoizes the construction so
// concurrent operators of one query share a single open. MemorySource keeps
// everything in RAM, while WriteBlob/OpenBlobSource round-trip the same
// structures through a compressed blob in a BlobStore.
package segment
