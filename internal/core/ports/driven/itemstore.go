package driven

import (
	"context"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// ItemStore persists items and their bundles.
type ItemStore interface {
	// SaveItem stores or updates an item.
	SaveItem(ctx context.Context, item *domain.Item) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, id string) (*domain.Item, error)

	// GetItemByHandle retrieves an item by handle.
	GetItemByHandle(ctx context.Context, handle string) (*domain.Item, error)

	// ListItems returns all items ordered by handle.
	ListItems(ctx context.Context) ([]domain.Item, error)

	// DeleteItem removes an item with its bundles and bitstream records.
	DeleteItem(ctx context.Context, id string) error

	// EnsureBundle returns the named bundle of an item, creating it if missing.
	EnsureBundle(ctx context.Context, itemID, name string) (*domain.Bundle, error)

	// GetBundle returns the named bundle of an item or ErrNotFound.
	GetBundle(ctx context.Context, itemID, name string) (*domain.Bundle, error)

	// ListBundles returns the bundles of an item ordered by name.
	ListBundles(ctx context.Context, itemID string) ([]domain.Bundle, error)
}

// BitstreamStore persists bitstream records.
type BitstreamStore interface {
	// SaveBitstream stores or updates a bitstream record.
	SaveBitstream(ctx context.Context, bs *domain.Bitstream) error

	// GetBitstream retrieves a bitstream by ID.
	GetBitstream(ctx context.Context, id string) (*domain.Bitstream, error)

	// ListBitstreams returns the bitstreams of a bundle ordered by name.
	ListBitstreams(ctx context.Context, bundleID string) ([]domain.Bitstream, error)

	// FindByName returns the bitstreams of a bundle with the given name.
	FindByName(ctx context.Context, bundleID, name string) ([]domain.Bitstream, error)

	// DeleteBitstream removes a bitstream record.
	DeleteBitstream(ctx context.Context, id string) error
}

// FormatRegistry is the catalogue of known bitstream formats.
type FormatRegistry interface {
	// SaveFormat stores or updates a format.
	SaveFormat(ctx context.Context, format *domain.BitstreamFormat) error

	// GetFormat retrieves a format by ID.
	GetFormat(ctx context.Context, id string) (*domain.BitstreamFormat, error)

	// FindByShortDescription resolves a format string.
	// Returns ErrNotFound if no format has that short description.
	FindByShortDescription(ctx context.Context, shortDescription string) (*domain.BitstreamFormat, error)

	// FindByMIMEType returns the first format with the MIME type.
	FindByMIMEType(ctx context.Context, mimeType string) (*domain.BitstreamFormat, error)

	// FindByExtension returns the first format claiming the extension.
	FindByExtension(ctx context.Context, ext string) (*domain.BitstreamFormat, error)

	// ListFormats returns all formats ordered by short description.
	ListFormats(ctx context.Context) ([]domain.BitstreamFormat, error)
}
