// Package blobstore provides the storage abstraction for immutable
// segment blobs.
//
// BlobStore is the interface for reading and writing data blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with atomic writes
//   - MemoryStore: in-memory store for testing
//   - ThrottledStore: rate-limited wrapper around any store
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible object stores
//
// Cloud-backed blobs serve ReadAt via range requests, so index readers can
// fetch individual sections of a compacted segment without downloading the
// whole blob.
package blobstore
