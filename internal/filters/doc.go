// Package filters holds the built-in format filters run by the media filter
// manager.
//
// Each filter lives in its own package and turns one stored bitstream into a
// derived one:
//   - pdf: text extraction through pdftotext
//   - html, docx, markdown, eml: text extraction in Go
//   - plaintext: text normalisation (BOM, line endings, encoding)
//   - thumbnail: JPEG previews of JPEG, PNG and GIF images
//
// The builtin package registers them with their default input formats.
package filters
