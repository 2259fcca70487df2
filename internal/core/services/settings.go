package services

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
	"github.com/custodia-labs/mediafilter/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyActor          = "mediafilter.actor"
	keyWorkers        = "mediafilter.workers"
	keyItemsPerSecond = "mediafilter.items_per_second"
	keyForce          = "mediafilter.force"
	keyMaxItems       = "mediafilter.max_items"
	keyPlugins        = "mediafilter.plugins"
	keySkipHandles    = "mediafilter.skip_handles"

	filtersPrefix         = "filters."
	schedulerEnabled      = "scheduler.enabled"
	schedulerFilterPrefix = "scheduler.media_filter."
)

// Bounds for media filter settings.
const (
	maxWorkers       = 64
	maxWhenLength    = 1024
	maxFilterNameLen = 64
)

// SettingsService reads and writes application settings in the config store.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// MediaFilter returns the media filter settings merged over the defaults.
//
// Recognised keys:
//
//	[mediafilter]
//	actor, workers, items_per_second, force, max_items, plugins, skip_handles
//
//	[filters.<name>]
//	enabled, input_formats, when, options.<key>
func (s *SettingsService) MediaFilter() (domain.MediaFilterSettings, error) {
	settings := domain.DefaultMediaFilterSettings()

	settings.Actor = s.getString(keyActor, settings.Actor)
	settings.Workers = s.getInt(keyWorkers, settings.Workers)
	settings.ItemsPerSecond = s.configStore.GetFloat(keyItemsPerSecond)
	settings.Force = s.getBool(keyForce, settings.Force)
	settings.MaxItems = s.configStore.GetInt(keyMaxItems)
	settings.Plugins = s.configStore.GetStringSlice(keyPlugins)
	settings.SkipHandles = s.configStore.GetStringSlice(keySkipHandles)

	for _, name := range s.filterNames() {
		settings.Filters[name] = s.loadFilterSettings(name)
	}

	if err := ValidateMediaFilterSettings(settings); err != nil {
		return settings, fmt.Errorf("media filter settings: %w", err)
	}
	return settings, nil
}

// SetFilterEnabled switches a filter on or off.
func (s *SettingsService) SetFilterEnabled(name string, enabled bool) error {
	if err := validateFilterName(name); err != nil {
		return err
	}
	if err := s.configStore.Set(filtersPrefix+name+".enabled", enabled); err != nil {
		return fmt.Errorf("save filter %s enabled: %w", name, err)
	}
	return nil
}

// SetFilterCondition sets the selection expression of a filter.
func (s *SettingsService) SetFilterCondition(name, when string) error {
	if err := validateFilterName(name); err != nil {
		return err
	}
	if _, err := compileCondition(when); err != nil {
		return err
	}
	key := filtersPrefix + name + ".when"
	var err error
	if strings.TrimSpace(when) == "" {
		err = s.configStore.Delete(key)
	} else {
		err = s.configStore.Set(key, when)
	}
	if err != nil {
		return fmt.Errorf("save filter %s condition: %w", name, err)
	}
	return nil
}

// Scheduler returns the scheduler configuration over the defaults.
//
//	[scheduler]
//	enabled
//
//	[scheduler.media_filter]
//	enabled, interval (a Go duration such as "30m", or whole seconds)
func (s *SettingsService) Scheduler() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	cfg.Enabled = s.getBool(schedulerEnabled, cfg.Enabled)

	task := &cfg.MediaFilter
	task.Enabled = s.getBool(schedulerFilterPrefix+"enabled", task.Enabled)
	key := schedulerFilterPrefix + "interval"
	if raw, ok := s.configStore.Get(key); ok {
		if d := s.configStore.GetDuration(key); d > 0 {
			task.Interval = d
		} else {
			logger.Warn("settings: ignoring invalid scheduler interval %v", raw)
		}
	}
	return cfg
}

// ValidateMediaFilterSettings checks settings bounds and filter conditions.
func ValidateMediaFilterSettings(settings domain.MediaFilterSettings) error {
	err := validation.ValidateStruct(&settings,
		validation.Field(&settings.Actor, validation.Required),
		validation.Field(&settings.Workers, validation.Required, validation.Min(1), validation.Max(maxWorkers)),
		validation.Field(&settings.ItemsPerSecond, validation.Min(0.0)),
		validation.Field(&settings.MaxItems, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	for name, fs := range settings.Filters {
		if err := validateFilterName(name); err != nil {
			return err
		}
		err := validation.ValidateStruct(&fs,
			validation.Field(&fs.When, validation.Length(0, maxWhenLength)),
			validation.Field(&fs.InputFormats, validation.Each(validation.Required)),
		)
		if err != nil {
			return fmt.Errorf("%w: filter %s: %w", domain.ErrInvalidInput, name, err)
		}
		if _, err := compileCondition(fs.When); err != nil {
			return fmt.Errorf("filter %s: %w", name, err)
		}
	}
	return nil
}

func validateFilterName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, maxFilterNameLen),
	)
	if err != nil || strings.ContainsAny(name, ". \t") {
		return fmt.Errorf("%w: filter name %q", domain.ErrInvalidInput, name)
	}
	return nil
}

// filterNames returns the filter names that have settings.
func (s *SettingsService) filterNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, key := range s.configStore.Keys(filtersPrefix) {
		rest := strings.TrimPrefix(key, filtersPrefix)
		name, _, ok := strings.Cut(rest, ".")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func (s *SettingsService) loadFilterSettings(name string) domain.FilterSettings {
	prefix := filtersPrefix + name + "."
	fs := domain.FilterSettings{
		Enabled:      s.getBool(prefix+"enabled", true),
		InputFormats: s.configStore.GetStringSlice(prefix + "input_formats"),
		When:         s.configStore.GetString(prefix + "when"),
	}

	optPrefix := prefix + "options."
	for _, key := range s.configStore.Keys(optPrefix) {
		if val, ok := s.configStore.Get(key); ok {
			if fs.Options == nil {
				fs.Options = make(map[string]any)
			}
			fs.Options[strings.TrimPrefix(key, optPrefix)] = val
		}
	}
	return fs
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}
