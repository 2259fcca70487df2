package mcp

import (
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// MediaFilter runs the format filters.
	MediaFilter driving.MediaFilterService

	// Items reads stored items and bitstreams.
	Items driving.ItemService

	// Settings supplies the configured run options (skip list, plugins,
	// force, max items) that tool inputs are layered over.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.MediaFilter == nil {
		return ErrMissingMediaFilterService
	}
	// Items is optional; item tools and resources report empty results without it
	return nil
}
