// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants run the media filter and read stored items.
package mcp

import "errors"

// ErrMissingMediaFilterService is returned when the media filter service is not provided.
var ErrMissingMediaFilterService = errors.New("mcp: media filter service is required")
