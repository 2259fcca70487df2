// Package docx extracts text from Word (OOXML) documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/filters"
)

// Name is the registry name of the filter.
const Name = "docx"

// Ensure Filter implements the interface.
var _ driven.FormatFilter = (*Filter)(nil)

const (
	documentPart = "word/document.xml"

	// maxSourceBytes bounds the archive read into memory.
	maxSourceBytes = 64 << 20

	// maxPartBytes bounds the decompressed document part.
	maxPartBytes = 128 << 20
)

// Filter extracts paragraph text from DOCX documents.
type Filter struct {
	filters.Output
}

// New creates a new DOCX filter.
func New() *Filter {
	return &Filter{Output: filters.TextOutput(Name)}
}

// Transform returns the text of word/document.xml, one paragraph per line.
func (f *Filter) Transform(_ context.Context, _ *domain.Item, source io.Reader, _ bool) (io.ReadCloser, error) {
	data, err := filters.ReadLimited(source, maxSourceBytes)
	if err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", domain.ErrInvalidInput, err)
	}

	text, err := extractDocumentText(reader)
	if err != nil {
		return nil, err
	}
	return filters.TextResult(text)
}

// extractDocumentText finds and parses word/document.xml.
func extractDocumentText(reader *zip.Reader) (string, error) {
	for _, file := range reader.File {
		if file.Name != documentPart {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", domain.ErrInvalidInput, documentPart, err)
		}
		defer rc.Close()

		return parseDocumentXML(io.LimitReader(rc, maxPartBytes))
	}
	return "", fmt.Errorf("%w: %s missing", domain.ErrInvalidInput, documentPart)
}

// parseDocumentXML walks the document tokens. Text runs are joined within a
// paragraph; tabs and breaks are kept. Paragraphs nested in tables are
// included in document order.
func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		result    strings.Builder
		paragraph strings.Builder
		inText    bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br", "cr":
				paragraph.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(paragraph.String()); line != "" {
					if result.Len() > 0 {
						result.WriteByte('\n')
					}
					result.WriteString(line)
				}
				paragraph.Reset()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}

	return result.String(), nil
}
