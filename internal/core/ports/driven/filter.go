package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// FormatFilter transforms one stored bitstream into a derived bitstream of
// another format. Each filter kind (pdf, html, thumbnail, etc.) implements
// this interface and is run by the media filter manager.
//
// Filters hold no state across calls; a single instance may be used by
// several goroutines at once as long as each call gets its own streams.
// A filter never writes to storage itself.
type FormatFilter interface {
	// FilteredName returns the file name for a newly created derived
	// bitstream, e.g. "document.pdf" becomes "document.pdf.txt".
	FilteredName(sourceName string) string

	// BundleName returns the bundle generated bitstreams are stored in.
	BundleName() string

	// FormatString returns the short description of the derived format.
	// It must resolve against the format registry.
	FormatString() string

	// Description describes how generated bitstreams were produced.
	Description() string

	// PreProcess runs before the transformation.
	// Returns true if processing should continue, false if the source
	// should be skipped without generating output.
	PreProcess(ctx context.Context, sess FilterSession, item *domain.Item, source *domain.Bitstream, verbose bool) (bool, error)

	// Transform reads the source content and returns the derived content.
	// The filter must not close source; the caller owns and closes the
	// returned stream.
	Transform(ctx context.Context, item *domain.Item, source io.Reader, verbose bool) (io.ReadCloser, error)

	// PostProcess runs after the caller has persisted the derived bitstream.
	PostProcess(ctx context.Context, sess FilterSession, item *domain.Item, generated *domain.Bitstream) error
}

// FilterSession is the execution scope handed to filter hooks.
// It exposes read access to stored content and bitstream metadata updates.
type FilterSession interface {
	// Actor identifies who the run is performed for.
	Actor() string

	// Open returns the content of a stored bitstream. The caller closes it.
	Open(ctx context.Context, bs *domain.Bitstream) (io.ReadCloser, error)

	// UpdateBitstream persists changes to a bitstream's descriptive fields.
	UpdateBitstream(ctx context.Context, bs *domain.Bitstream) error
}
