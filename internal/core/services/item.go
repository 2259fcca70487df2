package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
	"github.com/custodia-labs/mediafilter/internal/logger"
)

// Ensure ItemService implements the interface.
var _ driving.ItemService = (*ItemService)(nil)

// handlePrefix prefixes handles of items created locally.
const handlePrefix = "local/"

// sniffLen is the number of leading bytes used for content sniffing.
const sniffLen = 512

// ItemService manages items and their stored content.
type ItemService struct {
	itemStore      driven.ItemStore
	bitstreamStore driven.BitstreamStore
	formats        driven.FormatRegistry
	assets         driven.AssetStore
}

// NewItemService creates a new item service.
func NewItemService(
	itemStore driven.ItemStore,
	bitstreamStore driven.BitstreamStore,
	formats driven.FormatRegistry,
	assets driven.AssetStore,
) *ItemService {
	return &ItemService{
		itemStore:      itemStore,
		bitstreamStore: bitstreamStore,
		formats:        formats,
		assets:         assets,
	}
}

// Import stores files in the ORIGINAL bundle of an item. A file whose name
// already exists in the bundle replaces that bitstream's content and keeps
// its ID, so derived bitstreams stay linked to it.
func (s *ItemService) Import(ctx context.Context, req driving.ImportRequest) (*domain.Item, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: no files to import", domain.ErrInvalidInput)
	}
	for _, f := range req.Files {
		if f.Name == "" || f.Content == nil {
			return nil, fmt.Errorf("%w: file needs a name and content", domain.ErrInvalidInput)
		}
	}

	item, err := s.resolveItem(ctx, req)
	if err != nil {
		return nil, err
	}

	bundle, err := s.itemStore.EnsureBundle(ctx, item.ID, domain.BundleOriginal)
	if err != nil {
		return nil, fmt.Errorf("ensure bundle: %w", err)
	}

	for _, f := range req.Files {
		if err := s.storeFile(ctx, item, bundle, f); err != nil {
			return nil, fmt.Errorf("import %s: %w", f.Name, err)
		}
	}

	item.UpdatedAt = time.Now()
	if err := s.itemStore.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// resolveItem returns the item named by the request, creating it if needed.
func (s *ItemService) resolveItem(ctx context.Context, req driving.ImportRequest) (*domain.Item, error) {
	if req.Handle != "" {
		item, err := s.itemStore.GetItemByHandle(ctx, req.Handle)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get item: %w", err)
		}
	}

	handle := req.Handle
	if handle == "" {
		handle = newHandle()
	}
	name := req.Name
	if name == "" {
		name = req.Files[0].Name
	}

	now := time.Now()
	item := &domain.Item{
		ID:        uuid.New().String(),
		Handle:    handle,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.itemStore.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	logger.Info("created item %s", item.Handle)
	return item, nil
}

func (s *ItemService) storeFile(ctx context.Context, item *domain.Item, bundle *domain.Bundle, f driving.ImportFile) error {
	br := bufio.NewReaderSize(f.Content, sniffLen)
	head, _ := br.Peek(sniffLen)

	format, err := s.guessFormat(ctx, f.Name, f.MIMEType, head)
	if err != nil {
		return err
	}

	asset, err := s.assets.Put(ctx, br)
	if err != nil {
		return fmt.Errorf("store content: %w", err)
	}

	existing, err := s.bitstreamStore.FindByName(ctx, bundle.ID, f.Name)
	if err != nil {
		_ = s.assets.Delete(ctx, asset.Key)
		return fmt.Errorf("find bitstream: %w", err)
	}

	bs := &domain.Bitstream{
		ID:        uuid.New().String(),
		ItemID:    item.ID,
		BundleID:  bundle.ID,
		Name:      f.Name,
		CreatedAt: time.Now(),
	}
	var oldKey string
	if len(existing) > 0 {
		*bs = existing[len(existing)-1]
		oldKey = bs.StoreKey
	}
	bs.FormatID = format.ID
	bs.Size = asset.Size
	bs.Checksum = asset.Checksum
	bs.StoreKey = asset.Key

	if err := s.bitstreamStore.SaveBitstream(ctx, bs); err != nil {
		_ = s.assets.Delete(ctx, asset.Key)
		return fmt.Errorf("save bitstream: %w", err)
	}
	if oldKey != "" {
		if err := s.assets.Delete(ctx, oldKey); err != nil {
			logger.Warn("remove replaced content %s: %v", oldKey, err)
		}
	}

	logger.Debug("stored %s in %s as %s (%d bytes)", f.Name, item.Handle, format.ShortDescription, bs.Size)
	return nil
}

// guessFormat resolves the format of a file by extension, then by the
// supplied MIME type, then by sniffing its leading bytes. Files that match
// nothing get the unknown format.
func (s *ItemService) guessFormat(ctx context.Context, name, mimeHint string, head []byte) (*domain.BitstreamFormat, error) {
	if ext := filepath.Ext(name); ext != "" {
		if format, err := s.formats.FindByExtension(ctx, ext); err == nil {
			return format, nil
		}
	}

	candidates := []string{mimeHint}
	if len(head) > 0 {
		candidates = append(candidates, http.DetectContentType(head))
	}
	for _, c := range candidates {
		mediaType, _, err := mime.ParseMediaType(c)
		if err != nil || mediaType == "application/octet-stream" {
			continue
		}
		if format, err := s.formats.FindByMIMEType(ctx, mediaType); err == nil {
			return format, nil
		}
	}

	format, err := s.formats.FindByShortDescription(ctx, domain.FormatUnknown)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFormat, domain.FormatUnknown)
	}
	return format, nil
}

// List returns all items ordered by handle.
func (s *ItemService) List(ctx context.Context) ([]domain.Item, error) {
	return s.itemStore.ListItems(ctx)
}

// Get retrieves an item with its bundles and bitstreams.
func (s *ItemService) Get(ctx context.Context, handle string) (*driving.ItemDetails, error) {
	item, err := s.itemStore.GetItemByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", handle, err)
	}

	bundles, err := s.itemStore.ListBundles(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}

	formatNames := make(map[string]string)
	details := &driving.ItemDetails{Item: *item}
	for _, b := range bundles {
		bitstreams, err := s.bitstreamStore.ListBitstreams(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("list bitstreams: %w", err)
		}

		bd := driving.BundleDetails{Bundle: b}
		for i := range bitstreams {
			bd.Bitstreams = append(bd.Bitstreams, driving.BitstreamDetails{
				Bitstream: bitstreams[i],
				Format:    s.formatName(ctx, bitstreams[i].FormatID, formatNames),
			})
		}
		details.Bundles = append(details.Bundles, bd)
	}
	return details, nil
}

func (s *ItemService) formatName(ctx context.Context, id string, cache map[string]string) string {
	if name, ok := cache[id]; ok {
		return name
	}
	name := domain.FormatUnknown
	if format, err := s.formats.GetFormat(ctx, id); err == nil {
		name = format.ShortDescription
	}
	cache[id] = name
	return name
}

// Bitstream retrieves a bitstream record.
func (s *ItemService) Bitstream(ctx context.Context, id string) (*domain.Bitstream, error) {
	bs, err := s.bitstreamStore.GetBitstream(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get bitstream %s: %w", id, err)
	}
	return bs, nil
}

// Content opens the content of a bitstream.
func (s *ItemService) Content(ctx context.Context, id string) (io.ReadCloser, error) {
	bs, err := s.Bitstream(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, err := s.assets.Open(ctx, bs.StoreKey)
	if err != nil {
		return nil, fmt.Errorf("open content of %s: %w", id, err)
	}
	return rc, nil
}

// Formats lists the format registry.
func (s *ItemService) Formats(ctx context.Context) ([]domain.BitstreamFormat, error) {
	return s.formats.ListFormats(ctx)
}

// SeedFormats saves the given formats into the registry. Existing entries
// with the same ID are updated.
func SeedFormats(ctx context.Context, registry driven.FormatRegistry, formats []domain.BitstreamFormat) error {
	for i := range formats {
		if err := registry.SaveFormat(ctx, &formats[i]); err != nil {
			return fmt.Errorf("seed format %s: %w", formats[i].ShortDescription, err)
		}
	}
	return nil
}

func newHandle() string {
	return handlePrefix + uuid.New().String()[:8]
}
