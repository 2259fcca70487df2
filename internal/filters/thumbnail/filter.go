// Package thumbnail generates JPEG preview images from JPEG, PNG and GIF
// bitstreams.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"io"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/filters"
)

// Name is the registry name of the filter.
const Name = "thumbnail"

// Ensure Filter implements the interface.
var _ driven.FormatFilter = (*Filter)(nil)

// maxPixels guards against decompression bombs.
const maxPixels = 100_000_000

// Options controls thumbnail size and quality.
type Options struct {
	MaxWidth       int
	MaxHeight      int
	Quality        int
	MaxSourceBytes int64
}

// DefaultOptions returns the default 80x80 thumbnail settings.
func DefaultOptions() Options {
	return Options{
		MaxWidth:       domain.DefaultThumbnailSize,
		MaxHeight:      domain.DefaultThumbnailSize,
		Quality:        domain.DefaultThumbnailQual,
		MaxSourceBytes: domain.DefaultMaxSourceBytes,
	}
}

// OptionsFrom reads the max_width, max_height, quality and max_source_bytes
// filter options, falling back to the defaults.
func OptionsFrom(fs domain.FilterSettings) Options {
	def := DefaultOptions()
	return Options{
		MaxWidth:       fs.IntOption("max_width", def.MaxWidth),
		MaxHeight:      fs.IntOption("max_height", def.MaxHeight),
		Quality:        fs.IntOption("quality", def.Quality),
		MaxSourceBytes: int64(fs.IntOption("max_source_bytes", int(def.MaxSourceBytes))),
	}
}

// Filter scales images down to a JPEG thumbnail.
type Filter struct {
	filters.Output
	opts Options
}

// New creates a thumbnail filter. Out of range options are replaced by
// their defaults.
func New(opts Options) *Filter {
	def := DefaultOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = def.MaxSourceBytes
	}

	return &Filter{
		Output: filters.Output{
			Name:   Name,
			Bundle: domain.BundleThumbnail,
			Format: "JPEG",
			Desc:   "Generated Thumbnail",
			Suffix: ".jpg",
		},
		opts: opts,
	}
}

// PreProcess skips empty sources and sources larger than MaxSourceBytes.
func (f *Filter) PreProcess(ctx context.Context, sess driven.FilterSession, item *domain.Item, source *domain.Bitstream, verbose bool) (bool, error) {
	ok, err := f.Output.PreProcess(ctx, sess, item, source, verbose)
	if err != nil || !ok {
		return ok, err
	}
	return source.Size <= f.opts.MaxSourceBytes, nil
}

// Transform decodes the image, scales it to fit the configured box and
// encodes the result as JPEG. Transparent areas are drawn on white.
func (f *Filter) Transform(_ context.Context, _ *domain.Item, source io.Reader, _ bool) (io.ReadCloser, error) {
	data, err := filters.ReadLimited(source, f.opts.MaxSourceBytes)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrInvalidInput, err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: image of %dx%d pixels is too large", domain.ErrInvalidInput, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrInvalidInput, err)
	}

	w, h := fitSize(src.Bounds().Dx(), src.Bounds().Dy(), f.opts.MaxWidth, f.opts.MaxHeight)
	thumb := scale(src, w, h)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: f.opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return io.NopCloser(&buf), nil
}

// fitSize scales width and height to fit within maxW x maxH keeping the
// aspect ratio. Images are never enlarged and no side drops below 1.
func fitSize(width, height, maxW, maxH int) (int, int) {
	if width <= 0 || height <= 0 {
		return 1, 1
	}

	w, h := float64(width), float64(height)
	if w > float64(maxW) {
		h *= float64(maxW) / w
		w = float64(maxW)
	}
	if h > float64(maxH) {
		w *= float64(maxH) / h
		h = float64(maxH)
	}

	return max(1, int(w+0.5)), max(1, int(h+0.5))
}

// scale resamples src to w x h by averaging the source pixels each target
// pixel covers, compositing over a white background.
func scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()

	for y := 0; y < h; y++ {
		y0 := b.Min.Y + y*sh/h
		y1 := max(y0+1, b.Min.Y+(y+1)*sh/h)

		for x := 0; x < w; x++ {
			x0 := b.Min.X + x*sw/w
			x1 := max(x0+1, b.Min.X+(x+1)*sw/w)

			var r, g, bl, n uint64
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					cr, cg, cb, ca := src.At(sx, sy).RGBA()
					// Colours are alpha premultiplied; add white for the rest
					white := uint64(0xffff - ca)
					r += uint64(cr) + white
					g += uint64(cg) + white
					bl += uint64(cb) + white
					n++
				}
			}

			dst.SetRGBA(x, y, color.RGBA{
				R: uint8(r / n >> 8),
				G: uint8(g / n >> 8),
				B: uint8(bl / n >> 8),
				A: 0xff,
			})
		}
	}
	return dst
}
