package filters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// Descriptions shared by the text filters.
const (
	DescExtractedText  = "Extracted text"
	DescNormalisedText = "Normalised text"
	FormatText         = "Text"
	SuffixText         = ".txt"
)

// ErrNoText is returned by Transform when a source yields no text.
// It wraps domain.ErrSkipRequested so the source is skipped, not failed.
var ErrNoText = fmt.Errorf("%w: no text extracted", domain.ErrSkipRequested)

// Output implements the descriptive half of driven.FormatFilter together
// with the default PreProcess and PostProcess hooks. Filters embed it and
// supply Transform.
type Output struct {
	// Name is the registry name recorded on generated bitstreams.
	Name string

	Bundle string
	Format string
	Desc   string

	// Suffix is appended to the source name.
	Suffix string
}

// TextOutput returns the output of a filter that extracts text.
func TextOutput(name string) Output {
	return Output{
		Name:   name,
		Bundle: domain.BundleText,
		Format: FormatText,
		Desc:   DescExtractedText,
		Suffix: SuffixText,
	}
}

// FilteredName appends the output suffix to the source name.
func (o Output) FilteredName(sourceName string) string {
	return sourceName + o.Suffix
}

// BundleName returns the target bundle.
func (o Output) BundleName() string {
	return o.Bundle
}

// FormatString returns the derived format's short description.
func (o Output) FormatString() string {
	return o.Format
}

// Description labels generated bitstreams.
func (o Output) Description() string {
	return o.Desc
}

// PreProcess skips empty sources.
func (o Output) PreProcess(_ context.Context, _ driven.FilterSession, _ *domain.Item, source *domain.Bitstream, _ bool) (bool, error) {
	if source == nil {
		return false, domain.ErrInvalidInput
	}
	return source.Size > 0, nil
}

// PostProcess records which filter produced the bitstream.
func (o Output) PostProcess(ctx context.Context, sess driven.FilterSession, _ *domain.Item, generated *domain.Bitstream) error {
	if generated == nil {
		return domain.ErrInvalidInput
	}
	generated.SetMetadata(domain.MetaGeneratedBy, o.Name)
	if err := sess.UpdateBitstream(ctx, generated); err != nil {
		return fmt.Errorf("record generator: %w", err)
	}
	return nil
}

// TextResult returns extracted text as a derived stream.
// Blank text yields ErrNoText.
func TextResult(text string) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	return io.NopCloser(strings.NewReader(text)), nil
}

// errTooLarge is reported when a source exceeds a read limit.
var errTooLarge = errors.New("source too large")

// ReadLimited reads all of r, failing with domain.ErrInvalidInput when more
// than limit bytes are available. A limit <= 0 reads without bound.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, domain.ErrInvalidInput
	}
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %w (limit %d bytes)", domain.ErrInvalidInput, errTooLarge, limit)
	}
	return data, nil
}
