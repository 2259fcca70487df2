package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/mediafilter/internal/adapters/driven/config"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// FileName is the settings file inside the home directory.
const FileName = "config.toml"

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a TOML file. Values are held under flat
// dot-notation keys and written back as nested tables, so
// "filters.pdf.enabled" becomes [filters.pdf] enabled = ...
type ConfigStore struct {
	mu   sync.RWMutex
	path string
	data map[string]any
}

// NewConfigStore opens dir/config.toml, creating dir if needed. A missing
// file is an empty configuration. An empty dir means ~/.mediafilter.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home: %w", err)
		}
		dir = filepath.Join(home, ".mediafilter")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	s := &ConfigStore{
		path: filepath.Join(dir, FileName),
		data: make(map[string]any),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
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
	return config.Keys(s.data, prefix)
}

// Set stores value and rewrites the file. On a failed write the in-memory
// value is rolled back.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, had := s.data[key]
	s.data[key] = value
	if err := s.write(); err != nil {
		if had {
			s.data[key] = old
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *ConfigStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, had := s.data[key]
	if !had {
		return nil
	}
	delete(s.data, key)
	if err := s.write(); err != nil {
		s.data[key] = old
		return err
	}
	return nil
}

func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write()
}

// write replaces the file through a temp file in the same directory so a
// crash never leaves a truncated config. Caller holds mu.
func (s *ConfigStore) write() error {
	out, err := toml.Marshal(nestMap(s.data))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load replaces the in-memory values with the file's contents.
func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.data = make(map[string]any)
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var tree map[string]any
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.data = flatten(tree, "", make(map[string]any))
	s.mu.Unlock()
	return nil
}

func (s *ConfigStore) Path() string {
	return s.path
}

// flatten writes the leaves of tree into out under dot-joined keys.
func flatten(tree map[string]any, prefix string, out map[string]any) map[string]any {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			flatten(sub, key, out)
			continue
		}
		out[key] = value
	}
	return out
}

// nestMap is the inverse of flatten. A key whose path collides with a
// scalar (e.g. "a" and "a.b" both set) is kept flat at the top level.
func nestMap(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	// Shorter keys first so scalars claim their path before longer keys.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})

	nested := make(map[string]any)
	for _, key := range keys {
		if !insertNested(nested, strings.Split(key, "."), flat[key]) {
			nested[key] = flat[key]
		}
	}
	return nested
}

func insertNested(m map[string]any, parts []string, value any) bool {
	head := parts[0]
	if len(parts) == 1 {
		if _, taken := m[head]; taken {
			return false
		}
		m[head] = value
		return true
	}

	child, ok := m[head]
	if !ok {
		child = make(map[string]any)
		m[head] = child
	}
	table, ok := child.(map[string]any)
	if !ok {
		return false
	}
	return insertNested(table, parts[1:], value)
}
