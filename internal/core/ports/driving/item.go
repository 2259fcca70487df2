package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// ItemService manages items and their content.
type ItemService interface {
	// Import stores files in the ORIGINAL bundle of an item, creating the
	// item if the handle is empty or unknown.
	Import(ctx context.Context, req ImportRequest) (*domain.Item, error)

	// List returns all items ordered by handle.
	List(ctx context.Context) ([]domain.Item, error)

	// Get retrieves an item with its bundles and bitstreams.
	Get(ctx context.Context, handle string) (*ItemDetails, error)

	// Bitstream retrieves a bitstream record.
	Bitstream(ctx context.Context, id string) (*domain.Bitstream, error)

	// Content opens the content of a bitstream. The caller closes it.
	Content(ctx context.Context, id string) (io.ReadCloser, error)

	// Formats lists the format registry.
	Formats(ctx context.Context) ([]domain.BitstreamFormat, error)
}

// ImportRequest describes files to deposit.
type ImportRequest struct {
	// Handle selects an existing item; empty creates a new one.
	Handle string

	// Name is the item name when a new item is created.
	Name string

	// Files are the files to store.
	Files []ImportFile
}

// ImportFile is one file to deposit.
type ImportFile struct {
	// Name is the bitstream name.
	Name string

	// Content is read to the end; the caller closes it.
	Content io.Reader

	// MIMEType is an optional hint used when the extension is not recognised.
	MIMEType string
}

// ItemDetails is an item with its bundles and bitstreams.
type ItemDetails struct {
	Item    domain.Item
	Bundles []BundleDetails
}

// BundleDetails is a bundle with its bitstreams and their formats.
type BundleDetails struct {
	Bundle     domain.Bundle
	Bitstreams []BitstreamDetails
}

// BitstreamDetails pairs a bitstream with its resolved format.
type BitstreamDetails struct {
	Bitstream domain.Bitstream
	Format    string
}
