package domain

// Default media filter settings.
const (
	DefaultWorkers        = 4
	DefaultThumbnailSize  = 80
	DefaultThumbnailQual  = 75
	DefaultMaxSourceBytes = 50 << 20
	DefaultActor          = "mediafilter"
)

// MediaFilterSettings holds the configuration of the media filter manager.
type MediaFilterSettings struct {
	// Actor is the identity filters see through their session.
	Actor string

	// Workers is the number of items processed concurrently.
	Workers int

	// ItemsPerSecond throttles item processing (0 = unlimited).
	ItemsPerSecond float64

	// Force re-creates derived bitstreams by default.
	Force bool

	// MaxItems limits items per run (0 = no limit).
	MaxItems int

	// Plugins restricts runs to these filters (empty = all enabled).
	Plugins []string

	// SkipHandles lists item handles that are never filtered.
	SkipHandles []string

	// Filters holds per-filter settings keyed by filter name.
	Filters map[string]FilterSettings
}

// FilterSettings configures one registered filter.
type FilterSettings struct {
	// Enabled switches the filter on or off.
	Enabled bool

	// InputFormats overrides the format short descriptions the filter accepts.
	InputFormats []string

	// When is an optional boolean expression evaluated per source bitstream.
	When string

	// Options carries filter-specific values (e.g. max_width).
	Options map[string]any
}

// Filter returns the settings for a filter, enabled by default when unset.
func (s *MediaFilterSettings) Filter(name string) FilterSettings {
	if fs, ok := s.Filters[name]; ok {
		return fs
	}
	return FilterSettings{Enabled: true}
}

// IntOption returns an integer option or def when missing or mistyped.
func (f FilterSettings) IntOption(key string, def int) int {
	switch v := f.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// RunOptions derives run options from the settings.
func (s *MediaFilterSettings) RunOptions() RunOptions {
	return RunOptions{
		Force:       s.Force,
		MaxItems:    s.MaxItems,
		Plugins:     s.Plugins,
		SkipHandles: s.SkipHandles,
	}
}

// DefaultMediaFilterSettings returns sensible defaults.
func DefaultMediaFilterSettings() MediaFilterSettings {
	return MediaFilterSettings{
		Actor:   DefaultActor,
		Workers: DefaultWorkers,
		Filters: map[string]FilterSettings{},
	}
}
