// Package markdown extracts plain text from Markdown bitstreams.
package markdown

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/filters"
)

// Name is the registry name of the filter.
const Name = "markdown"

// Ensure Filter implements the interface.
var _ driven.FormatFilter = (*Filter)(nil)

const maxSourceBytes = 32 << 20

// Filter strips Markdown syntax and keeps the prose.
type Filter struct {
	filters.Output
}

// New creates a new Markdown filter.
func New() *Filter {
	return &Filter{Output: filters.TextOutput(Name)}
}

// Transform returns the document with formatting removed.
func (f *Filter) Transform(_ context.Context, _ *domain.Item, source io.Reader, _ bool) (io.ReadCloser, error) {
	data, err := filters.ReadLimited(source, maxSourceBytes)
	if err != nil {
		return nil, err
	}
	return filters.TextResult(stripMarkdown(string(data)))
}

var (
	frontMatter   = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	codeFence     = regexp.MustCompile("(?m)^[ \t]*(```|~~~).*$")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	refLinkDefs   = regexp.MustCompile(`(?m)^[ \t]*\[[^\]]+\]:\s+\S+.*$`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	closingHashes = regexp.MustCompile(`(?m)[ \t]+#+[ \t]*$`)
	strong        = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	emphasis      = regexp.MustCompile(`(?m)(^|[\s(])[*_](\S(?:[^*_]*?\S)?)[*_]`)
	strike        = regexp.MustCompile(`~~(.+?)~~`)
	blockquote    = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	horizontal    = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	listMarkers   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+(\[[ xX]\][ \t]+)?`)
	numberedList  = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+`)
	tableRule     = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-+:?[ \t]*(\|[ \t]*:?-+:?[ \t]*)*\|?[ \t]*$`)
	htmlTags      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common Markdown formatting. Code block contents are
// kept since they are part of the document's text.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = frontMatter.ReplaceAllString(content, "")
	content = codeFence.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")

	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = refLinkDefs.ReplaceAllString(content, "")

	content = headings.ReplaceAllString(content, "")
	content = closingHashes.ReplaceAllString(content, "")
	content = horizontal.ReplaceAllString(content, "")
	content = tableRule.ReplaceAllString(content, "")

	content = strong.ReplaceAllString(content, "$2")
	content = emphasis.ReplaceAllString(content, "$1$2")
	content = strike.ReplaceAllString(content, "$1")

	content = blockquote.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")
	content = htmlTags.ReplaceAllString(content, "")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = multiNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")

	return strings.TrimSpace(content)
}
