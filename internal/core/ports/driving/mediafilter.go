package driving

import (
	"context"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// MediaFilterService runs format filters over stored items.
type MediaFilterService interface {
	// ApplyAll runs the applicable filters over every item.
	// Returns ErrRunInProgress if another run is active.
	ApplyAll(ctx context.Context, opts domain.RunOptions) (*domain.RunReport, error)

	// ApplyItem runs the applicable filters over a single item.
	ApplyItem(ctx context.Context, handle string, opts domain.RunOptions) (*domain.RunReport, error)

	// Status returns a snapshot of the active run.
	Status(ctx context.Context) (*domain.RunStatus, error)

	// Filters describes the registered filters.
	Filters(ctx context.Context) ([]FilterInfo, error)
}

// FilterInfo describes a registered filter for display.
type FilterInfo struct {
	domain.FilterDescriptor

	// InputFormats lists the accepted source formats.
	InputFormats []string

	// Enabled reports whether the filter takes part in runs.
	Enabled bool
}
