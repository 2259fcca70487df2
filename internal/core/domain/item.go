package domain

import (
	"strings"
	"time"
)

// Well-known bundle names.
const (
	// BundleOriginal holds the bitstreams deposited with an item.
	BundleOriginal = "ORIGINAL"

	// BundleText holds extracted full text.
	BundleText = "TEXT"

	// BundleThumbnail holds generated preview images.
	BundleThumbnail = "THUMBNAIL"
)

// Metadata keys written on derived bitstreams.
const (
	// MetaSourceID links a derived bitstream to the bitstream it was produced from.
	MetaSourceID = "mediafilter.source"

	// MetaSourceChecksum records the checksum of the source at filtering time.
	MetaSourceChecksum = "mediafilter.source_checksum"

	// MetaGeneratedBy names the filter that produced a derived bitstream.
	MetaGeneratedBy = "mediafilter.generated_by"
)

// FormatUnknown is the short description of the fallback format.
const FormatUnknown = "Unknown"

// Item is a logical unit of content in the repository.
// It owns zero or more bundles, each holding bitstreams.
type Item struct {
	// ID is the unique identifier for the item.
	ID string

	// Handle is the user-facing identifier (e.g. "local/12").
	Handle string

	// Name is the human-readable title.
	Name string

	// Metadata contains descriptive key-value pairs.
	Metadata map[string]string

	// CreatedAt is when the item was created.
	CreatedAt time.Time

	// UpdatedAt is when the item was last modified.
	UpdatedAt time.Time
}

// Bundle is a named grouping of bitstreams within an item.
type Bundle struct {
	// ID is the unique identifier for the bundle.
	ID string

	// ItemID links to the owning Item.
	ItemID string

	// Name is the bundle name, unique per item (e.g. "ORIGINAL", "TEXT").
	Name string
}

// Bitstream is a named, typed byte sequence attached to an item.
// The bytes themselves live in the asset store under StoreKey.
type Bitstream struct {
	// ID is the unique identifier for the bitstream.
	ID string

	// ItemID links to the owning Item.
	ItemID string

	// BundleID links to the containing Bundle.
	BundleID string

	// Name is the file name (e.g. "document.pdf").
	Name string

	// Description is free text describing the bitstream.
	Description string

	// FormatID references the BitstreamFormat.
	FormatID string

	// Size is the content length in bytes.
	Size int64

	// Checksum is the hex encoded SHA-256 of the content.
	Checksum string

	// StoreKey locates the content in the asset store.
	StoreKey string

	// Metadata contains bitstream-level key-value pairs.
	Metadata map[string]string

	// CreatedAt is when the bitstream was stored.
	CreatedAt time.Time
}

// DerivedFrom returns the source bitstream ID recorded on a derived bitstream.
func (b *Bitstream) DerivedFrom() string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[MetaSourceID]
}

// SetMetadata sets a metadata value, allocating the map if needed.
func (b *Bitstream) SetMetadata(key, value string) {
	if b.Metadata == nil {
		b.Metadata = make(map[string]string)
	}
	b.Metadata[key] = value
}

// BitstreamFormat is an entry of the format registry.
type BitstreamFormat struct {
	// ID is the unique identifier for the format.
	ID string

	// ShortDescription is the format string filters refer to (e.g. "Text").
	ShortDescription string

	// MIMEType is the canonical MIME type.
	MIMEType string

	// Description is a longer human-readable description.
	Description string

	// Extensions lists file extensions without the leading dot.
	Extensions []string

	// Internal marks formats not meant for end users.
	Internal bool
}

// HasExtension reports whether ext (with or without a leading dot) belongs to the format.
func (f *BitstreamFormat) HasExtension(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, e := range f.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
