package ports

import "context"

// BlobStore stores captured media as opaque blobs addressed by key.
// Keys are content-addressed: storing identical bytes yields the same key,
// which is what makes step resubmission idempotent.
type BlobStore interface {
	// Put stores the blob and returns its key.
	Put(ctx context.Context, data []byte, contentType string) (string, error)

	// Get retrieves the blob for a key.
	Get(ctx context.Context, key string) ([]byte, error)
}
