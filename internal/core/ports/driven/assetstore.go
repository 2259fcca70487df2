package driven

import (
	"context"
	"io"
)

// Asset describes content written to an AssetStore.
type Asset struct {
	// Key locates the content in the store.
	Key string

	// Size is the content length in bytes.
	Size int64

	// Checksum is the hex encoded SHA-256 of the content.
	Checksum string
}

// AssetStore holds the bytes of bitstreams.
// Metadata lives in the BitstreamStore; the asset store only knows keys.
type AssetStore interface {
	// Put stores the content read from r under a new key.
	Put(ctx context.Context, r io.Reader) (*Asset, error)

	// Open returns the content stored under key. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content stored under key.
	// Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
