package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// Ensure AssetStore implements the interface.
var _ driven.AssetStore = (*AssetStore)(nil)

// AssetStore is an in-memory implementation of driven.AssetStore.
type AssetStore struct {
	mu     sync.RWMutex
	assets map[string][]byte
}

// NewAssetStore creates a new in-memory asset store.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		assets: make(map[string][]byte),
	}
}

// Put stores the content read from r under a new key.
func (s *AssetStore) Put(ctx context.Context, r io.Reader) (*driven.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	sum := sha256.Sum256(data)
	asset := &driven.Asset{
		Key:      uuid.New().String(),
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset.Key] = data
	return asset, nil
}

// Open returns the content stored under key.
func (s *AssetStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.assets[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the content stored under key.
func (s *AssetStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, key)
	return nil
}

// Len returns the number of stored assets.
func (s *AssetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}
