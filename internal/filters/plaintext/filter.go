// Package plaintext normalises plain text and CSV bitstreams.
package plaintext

import (
	"bytes"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/filters"
)

// Name is the registry name of the filter.
const Name = "plaintext"

// Ensure Filter implements the interface.
var _ driven.FormatFilter = (*Filter)(nil)

const maxSourceBytes = 64 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Filter produces a clean UTF-8 copy of a text bitstream.
type Filter struct {
	filters.Output
}

// New creates a new plain text filter.
func New() *Filter {
	out := filters.TextOutput(Name)
	out.Desc = filters.DescNormalisedText
	return &Filter{Output: out}
}

// Transform strips a byte order mark, converts line endings to LF and
// replaces invalid UTF-8 sequences.
func (f *Filter) Transform(_ context.Context, _ *domain.Item, source io.Reader, _ bool) (io.ReadCloser, error) {
	data, err := filters.ReadLimited(source, maxSourceBytes)
	if err != nil {
		return nil, err
	}
	return filters.TextResult(normalise(data))
}

func normalise(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)

	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
