package driven

import "time"

// ConfigStore holds the user settings under flat dot-notation keys such as
// "filters.thumbnail.enabled". Typed getters return the zero value when a
// key is missing or holds another type; use Get to tell the two apart.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetFloat(key string) float64
	GetStringSlice(key string) []string

	// GetDuration accepts a Go duration string or whole seconds.
	GetDuration(key string) time.Duration

	// Keys returns the sorted keys starting with prefix.
	Keys(prefix string) []string

	// Set stores value under key. File-backed stores write through.
	Set(key string, value any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	Save() error
	Load() error

	// Path is where the store persists, or ":memory:".
	Path() string
}
