// Package filesystem stores bitstream content as plain files.
//
// Content is addressed by a random key and laid out as
// <root>/<aa>/<bb>/<key>, where aa and bb are the first two character pairs
// of the key, so no single directory grows unbounded.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// Ensure AssetStore implements the interface.
var _ driven.AssetStore = (*AssetStore)(nil)

// AssetStore is a file-system implementation of driven.AssetStore.
type AssetStore struct {
	root string
}

// NewAssetStore creates an asset store rooted at dir.
// If dir is empty, defaults to ~/.mediafilter/assetstore.
func NewAssetStore(dir string) (*AssetStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".mediafilter", "assetstore")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating asset store directory: %w", err)
	}
	return &AssetStore{root: dir}, nil
}

// Root returns the directory content is stored under.
func (s *AssetStore) Root() string {
	return s.root
}

// Put streams r into a temporary file, then renames it into place so a
// partially written asset is never visible under its key.
func (s *AssetStore) Put(ctx context.Context, r io.Reader) (*driven.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strings.ReplaceAll(uuid.New().String(), "-", "")
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("writing asset: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("storing asset: %w", err)
	}

	return &driven.Asset{
		Key:      key,
		Size:     size,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// Open returns the content stored under key.
func (s *AssetStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, domain.ErrInvalidInput
	}
	f, err := os.Open(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening asset: %w", err)
	}
	return f, nil
}

// Delete removes the content stored under key.
func (s *AssetStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return domain.ErrInvalidInput
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting asset: %w", err)
	}
	return nil
}

func (s *AssetStore) path(key string) string {
	return filepath.Join(s.root, key[0:2], key[2:4], key)
}

// validKey rejects keys that could escape the root directory.
func validKey(key string) bool {
	if len(key) < 4 {
		return false
	}
	for _, c := range key {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isHex {
			return false
		}
	}
	return true
}

// ctxReader stops a copy once the context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
