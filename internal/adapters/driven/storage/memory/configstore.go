package memory

import (
	"sync"
	"time"

	"github.com/custodia-labs/mediafilter/internal/adapters/driven/config"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a map. Save and Load do nothing; it backs
// tests and runs started with an ephemeral home.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore returns a store seeded with a copy of initial.
func NewConfigStore(initial ...map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any)}
	for _, m := range initial {
		for k, v := range m {
			s.values[k] = v
		}
	}
	return s
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) lookup(key string) any {
	v, _ := s.Get(key)
	return v
}

func (s *ConfigStore) GetString(key string) string        { return config.String(s.lookup(key)) }
func (s *ConfigStore) GetInt(key string) int              { return config.Int(s.lookup(key)) }
func (s *ConfigStore) GetFloat(key string) float64        { return config.Float(s.lookup(key)) }
func (s *ConfigStore) GetBool(key string) bool            { return config.Bool(s.lookup(key)) }
func (s *ConfigStore) GetStringSlice(key string) []string { return config.StringSlice(s.lookup(key)) }

func (s *ConfigStore) GetDuration(key string) time.Duration {
	return config.Duration(s.lookup(key))
}

func (s *ConfigStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.Keys(s.values, prefix)
}

func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *ConfigStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *ConfigStore) Save() error  { return nil }
func (s *ConfigStore) Load() error  { return nil }
func (s *ConfigStore) Path() string { return ":memory:" }
