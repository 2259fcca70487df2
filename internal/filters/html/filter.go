// Package html extracts readable text from HTML bitstreams.
package html

import (
	"context"
	stdhtml "html"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/filters"
)

// Name is the registry name of the filter.
const Name = "html"

// Ensure Filter implements the interface.
var _ driven.FormatFilter = (*Filter)(nil)

// maxSourceBytes bounds how much markup is read into memory.
const maxSourceBytes = 32 << 20

// Filter extracts text from HTML documents.
type Filter struct {
	filters.Output
}

// New creates a new HTML filter.
func New() *Filter {
	return &Filter{Output: filters.TextOutput(Name)}
}

// Transform strips markup and returns the document text.
func (f *Filter) Transform(_ context.Context, _ *domain.Item, source io.Reader, _ bool) (io.ReadCloser, error) {
	data, err := filters.ReadLimited(source, maxSourceBytes)
	if err != nil {
		return nil, err
	}
	return filters.TextResult(ExtractText(string(data)))
}

// strict drops every tag. Policies are safe for concurrent use.
var strict = bluemonday.StrictPolicy()

// Pre-compiled regular expressions for the markup passes.
var (
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?>`)
	lineBreaks        = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	multiSpaces       = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// ExtractText returns the readable text of an HTML fragment or document.
// Block elements become line breaks, every remaining tag is dropped and
// whitespace is tidied.
func ExtractText(content string) string {
	for _, re := range []*regexp.Regexp{headTag, scriptTag, styleTag, noscriptTag, svgTag} {
		content = re.ReplaceAllString(content, "")
	}

	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = lineBreaks.ReplaceAllString(content, "\n")

	// The strict policy escapes text, so entities are decoded afterwards
	content = stdhtml.UnescapeString(strict.Sanitize(content))
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
