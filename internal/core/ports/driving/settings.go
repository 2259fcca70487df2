package driving

import "github.com/custodia-labs/mediafilter/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// MediaFilter returns the validated media filter settings.
	MediaFilter() (domain.MediaFilterSettings, error)

	// SetFilterEnabled switches a filter on or off and persists the change.
	SetFilterEnabled(name string, enabled bool) error

	// SetFilterCondition sets the selection expression of a filter.
	// An empty expression clears it.
	SetFilterCondition(name, when string) error

	// Scheduler returns the scheduler configuration.
	Scheduler() domain.SchedulerConfig
}
