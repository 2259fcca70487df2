// Package builtin registers the built-in format filters.
package builtin

import (
	"fmt"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/filters/docx"
	"github.com/custodia-labs/mediafilter/internal/filters/eml"
	"github.com/custodia-labs/mediafilter/internal/filters/html"
	"github.com/custodia-labs/mediafilter/internal/filters/markdown"
	"github.com/custodia-labs/mediafilter/internal/filters/pdf"
	"github.com/custodia-labs/mediafilter/internal/filters/plaintext"
	"github.com/custodia-labs/mediafilter/internal/filters/thumbnail"
)

// entry is a filter with its default input formats.
type entry struct {
	name   string
	filter driven.FormatFilter
	inputs []string
}

// entries returns the built-in filters in registration order. Filter
// options are read from settings.
func entries(settings domain.MediaFilterSettings) []entry {
	return []entry{
		{pdf.Name, pdf.New(pdf.OptionsFrom(settings.Filter(pdf.Name))), []string{"Adobe PDF"}},
		{html.Name, html.New(), []string{"HTML"}},
		{docx.Name, docx.New(), []string{"Microsoft Word XML"}},
		{markdown.Name, markdown.New(), []string{"Markdown"}},
		{eml.Name, eml.New(), []string{"RFC822 Message"}},
		{plaintext.Name, plaintext.New(), []string{"Text", "CSV"}},
		{thumbnail.Name, thumbnail.New(thumbnail.OptionsFrom(settings.Filter(thumbnail.Name))), []string{"JPEG", "PNG", "GIF"}},
	}
}

// Names lists the built-in filter names in registration order.
func Names() []string {
	list := entries(domain.DefaultMediaFilterSettings())
	names := make([]string, len(list))
	for i, e := range list {
		names[i] = e.name
	}
	return names
}

// Register adds every built-in filter to the registry. Per-filter enable
// switches and format overrides are applied separately by Configure.
func Register(reg driven.FilterRegistry, settings domain.MediaFilterSettings) error {
	for _, e := range entries(settings) {
		if err := reg.Register(e.name, e.filter, e.inputs...); err != nil {
			return fmt.Errorf("register %s filter: %w", e.name, err)
		}
	}
	return nil
}
