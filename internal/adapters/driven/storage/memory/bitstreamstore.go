package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// Ensure BitstreamStore implements the interface.
var _ driven.BitstreamStore = (*BitstreamStore)(nil)

// BitstreamStore is an in-memory implementation of driven.BitstreamStore.
type BitstreamStore struct {
	mu         sync.RWMutex
	bitstreams map[string]domain.Bitstream
}

// NewBitstreamStore creates a new in-memory bitstream store.
func NewBitstreamStore() *BitstreamStore {
	return &BitstreamStore{
		bitstreams: make(map[string]domain.Bitstream),
	}
}

// SaveBitstream stores or updates a bitstream record.
func (s *BitstreamStore) SaveBitstream(_ context.Context, bs *domain.Bitstream) error {
	if bs == nil || bs.ID == "" || bs.BundleID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *bs
	saved.Metadata = copyStrings(bs.Metadata)
	s.bitstreams[bs.ID] = saved
	return nil
}

// GetBitstream retrieves a bitstream by ID.
func (s *BitstreamStore) GetBitstream(_ context.Context, id string) (*domain.Bitstream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bs, ok := s.bitstreams[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	bs.Metadata = copyStrings(bs.Metadata)
	return &bs, nil
}

// ListBitstreams returns the bitstreams of a bundle ordered by name.
func (s *BitstreamStore) ListBitstreams(_ context.Context, bundleID string) ([]domain.Bitstream, error) {
	return s.filter(func(bs *domain.Bitstream) bool { return bs.BundleID == bundleID }), nil
}

// FindByName returns the bitstreams of a bundle with the given name.
func (s *BitstreamStore) FindByName(_ context.Context, bundleID, name string) ([]domain.Bitstream, error) {
	return s.filter(func(bs *domain.Bitstream) bool {
		return bs.BundleID == bundleID && bs.Name == name
	}), nil
}

// DeleteBitstream removes a bitstream record.
func (s *BitstreamStore) DeleteBitstream(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bitstreams, id)
	return nil
}

func (s *BitstreamStore) filter(match func(*domain.Bitstream) bool) []domain.Bitstream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Bitstream
	for id := range s.bitstreams {
		bs := s.bitstreams[id]
		if match(&bs) {
			bs.Metadata = copyStrings(bs.Metadata)
			result = append(result, bs)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Ensure FormatRegistry implements the interface.
var _ driven.FormatRegistry = (*FormatRegistry)(nil)

// FormatRegistry is an in-memory implementation of driven.FormatRegistry.
type FormatRegistry struct {
	mu      sync.RWMutex
	formats map[string]domain.BitstreamFormat
}

// NewFormatRegistry creates an empty in-memory format registry.
func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{
		formats: make(map[string]domain.BitstreamFormat),
	}
}

// SaveFormat stores or updates a format.
func (r *FormatRegistry) SaveFormat(_ context.Context, format *domain.BitstreamFormat) error {
	if format == nil || format.ID == "" || format.ShortDescription == "" {
		return domain.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.formats {
		if id != format.ID && r.formats[id].ShortDescription == format.ShortDescription {
			return domain.ErrAlreadyExists
		}
	}
	saved := *format
	saved.Extensions = append([]string(nil), format.Extensions...)
	r.formats[format.ID] = saved
	return nil
}

// GetFormat retrieves a format by ID.
func (r *FormatRegistry) GetFormat(_ context.Context, id string) (*domain.BitstreamFormat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

// FindByShortDescription resolves a format string.
func (r *FormatRegistry) FindByShortDescription(_ context.Context, shortDescription string) (*domain.BitstreamFormat, error) {
	return r.find(func(f *domain.BitstreamFormat) bool { return f.ShortDescription == shortDescription })
}

// FindByMIMEType returns the first format with the MIME type.
func (r *FormatRegistry) FindByMIMEType(_ context.Context, mimeType string) (*domain.BitstreamFormat, error) {
	return r.find(func(f *domain.BitstreamFormat) bool { return strings.EqualFold(f.MIMEType, mimeType) })
}

// FindByExtension returns the first format claiming the extension.
func (r *FormatRegistry) FindByExtension(_ context.Context, ext string) (*domain.BitstreamFormat, error) {
	return r.find(func(f *domain.BitstreamFormat) bool { return f.HasExtension(ext) })
}

// ListFormats returns all formats ordered by short description.
func (r *FormatRegistry) ListFormats(_ context.Context) ([]domain.BitstreamFormat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.BitstreamFormat, 0, len(r.formats))
	for id := range r.formats {
		result = append(result, r.formats[id])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ShortDescription < result[j].ShortDescription })
	return result, nil
}

func (r *FormatRegistry) find(match func(*domain.BitstreamFormat) bool) (*domain.BitstreamFormat, error) {
	formats, _ := r.ListFormats(context.Background())
	for i := range formats {
		if match(&formats[i]) {
			return &formats[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
