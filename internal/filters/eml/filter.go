// Package eml extracts text from RFC 822 e-mail messages.
package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/filters"
	"github.com/custodia-labs/mediafilter/internal/filters/html"
)

// Name is the registry name of the filter.
const Name = "eml"

// Ensure Filter implements the interface.
var _ driven.FormatFilter = (*Filter)(nil)

const (
	maxSourceBytes = 64 << 20

	// maxDepth bounds nested multipart recursion.
	maxDepth = 8
)

// Filter extracts the headers and readable body of an e-mail message.
type Filter struct {
	filters.Output
}

// New creates a new EML filter.
func New() *Filter {
	return &Filter{Output: filters.TextOutput(Name)}
}

// Transform returns the From, To, Date and Subject headers followed by the
// message body. Plain text parts are preferred over HTML parts; attachments
// are ignored.
func (f *Filter) Transform(_ context.Context, _ *domain.Item, source io.Reader, _ bool) (io.ReadCloser, error) {
	data, err := filters.ReadLimited(source, maxSourceBytes)
	if err != nil {
		return nil, err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse message: %v", domain.ErrInvalidInput, err)
	}

	body, err := extractBody(msg.Header, msg.Body, 0)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, key := range []string{"From", "To", "Date", "Subject"} {
		if v := decodeHeader(msg.Header.Get(key)); v != "" {
			fmt.Fprintf(&content, "%s: %s\n", key, v)
		}
	}
	content.WriteString("\n")
	content.WriteString(body)

	return filters.TextResult(strings.TrimSpace(content.String()))
}

// decodeHeader decodes RFC 2047 encoded words.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// partHeader is the subset of header access the body walk needs.
type partHeader interface {
	Get(key string) string
}

// extractBody returns the text of a message or part body.
func extractBody(header partHeader, body io.Reader, depth int) (string, error) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxDepth {
			return "", nil
		}
		return extractMultipartBody(body, params["boundary"], depth+1)
	}

	raw, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", domain.ErrInvalidInput, err)
	}

	text := string(raw)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}

	switch mediaType {
	case "text/html":
		return html.ExtractText(text), nil
	case "text/plain":
		return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")), nil
	default:
		return "", nil
	}
}

// decodeTransfer undoes a Content-Transfer-Encoding.
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	default:
		return r
	}
}

// newlineStripper drops line breaks so base64 bodies decode.
type newlineStripper struct {
	r io.Reader
}

func (s newlineStripper) Read(p []byte) (int, error) {
	for {
		n, err := s.r.Read(p)
		kept := 0
		for _, b := range p[:n] {
			if b != '\r' && b != '\n' {
				p[kept] = b
				kept++
			}
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}

// extractMultipartBody walks the parts of a multipart body.
func extractMultipartBody(r io.Reader, boundary string, depth int) (string, error) {
	if boundary == "" {
		return "", nil
	}

	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts, nestedParts []string

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep what was readable from a truncated message
			break
		}

		if isAttachment(part.Header.Get("Content-Disposition")) {
			part.Close()
			continue
		}

		mediaType, _, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr != nil {
			mediaType = "text/plain"
		}

		text, err := extractBody(part.Header, part, depth)
		part.Close()
		if err != nil || text == "" {
			continue
		}

		switch {
		case mediaType == "text/html":
			htmlParts = append(htmlParts, text)
		case strings.HasPrefix(mediaType, "multipart/"):
			nestedParts = append(nestedParts, text)
		default:
			textParts = append(textParts, text)
		}
	}

	textParts = append(textParts, nestedParts...)
	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}

func isAttachment(disposition string) bool {
	if disposition == "" {
		return false
	}
	d, _, err := mime.ParseMediaType(disposition)
	return err == nil && d == "attachment"
}
