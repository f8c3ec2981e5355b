package blobstore

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// ThrottledStore wraps a BlobStore with a byte-rate limit. It smooths the
// I/O of background work (segment compaction, prefetching) so foreground
// queries keep their bandwidth.
//
// The limiter counts payload bytes; metadata operations (Delete, List) pass
// through unthrottled.
type ThrottledStore struct {
	inner   BlobStore
	limiter *rate.Limiter
}

// NewThrottledStore wraps inner with a limit of bytesPerSec and the given
// burst size. Single reads larger than the burst are split internally.
func NewThrottledStore(inner BlobStore, bytesPerSec float64, burst int) *ThrottledStore {
	return &ThrottledStore{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

// waitN blocks until n bytes of budget are available, splitting requests
// larger than the limiter burst.
func (s *ThrottledStore) waitN(ctx context.Context, n int) error {
	burst := s.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := s.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Open opens a blob for reading. Reads through the returned handle are
// throttled.
func (s *ThrottledStore) Open(ctx context.Context, name string) (Blob, error) {
	blob, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &throttledBlob{inner: blob, store: s}, nil
}

// Put writes a blob, charging its size against the rate budget first.
func (s *ThrottledStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.waitN(ctx, len(data)); err != nil {
		return err
	}
	return s.inner.Put(ctx, name, data)
}

// Delete removes a blob.
func (s *ThrottledStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List returns all blob names with the given prefix.
func (s *ThrottledStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type throttledBlob struct {
	inner Blob
	store *ThrottledStore
}

func (b *throttledBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.store.waitN(ctx, len(p)); err != nil {
		return 0, err
	}
	return b.inner.ReadAt(ctx, p, off)
}

func (b *throttledBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	n := length
	if max := b.inner.Size() - off; n > max {
		n = max
	}
	if n > 0 {
		if err := b.store.waitN(ctx, int(n)); err != nil {
			return nil, err
		}
	}
	return b.inner.ReadRange(ctx, off, length)
}

func (b *throttledBlob) Size() int64 {
	return b.inner.Size()
}

func (b *throttledBlob) Close() error {
	return b.inner.Close()
}
