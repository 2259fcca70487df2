package driven

import (
	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// RegisteredFilter is a filter together with its registry configuration.
type RegisteredFilter struct {
	// Name is the registry name of the filter.
	Name string

	// Filter is the implementation.
	Filter FormatFilter

	// InputFormats lists the format short descriptions the filter accepts.
	InputFormats []string
}

// Descriptor returns the filter's output descriptor.
func (r RegisteredFilter) Descriptor() domain.FilterDescriptor {
	return domain.FilterDescriptor{
		Name:         r.Name,
		BundleName:   r.Filter.BundleName(),
		FormatString: r.Filter.FormatString(),
		Description:  r.Filter.Description(),
	}
}

// SelectInput is what a filter selection is decided on.
type SelectInput struct {
	Item   *domain.Item
	Bundle string
	Source *domain.Bitstream
	Format *domain.BitstreamFormat
}

// FilterRegistry maps source formats to the filters that accept them.
type FilterRegistry interface {
	// Register adds a filter under name with its default input formats.
	// Registering an existing name replaces the earlier entry.
	Register(name string, filter FormatFilter, inputFormats ...string) error

	// Configure applies per-filter settings (enable switch, input format
	// overrides, selection expressions).
	Configure(settings domain.MediaFilterSettings) error

	// Select returns the enabled filters applicable to a source bitstream,
	// in registration order. A non-empty plugins list restricts the result
	// to those names.
	Select(in SelectInput, plugins []string) ([]RegisteredFilter, error)

	// Get returns a registered filter by name.
	Get(name string) (RegisteredFilter, bool)

	// List returns all registered filters in registration order.
	List() []RegisteredFilter

	// Enabled reports whether the named filter takes part in runs.
	Enabled(name string) bool
}
