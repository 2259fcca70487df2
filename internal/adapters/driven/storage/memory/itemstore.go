package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// Ensure ItemStore implements the interface.
var _ driven.ItemStore = (*ItemStore)(nil)

// ItemStore is an in-memory implementation of driven.ItemStore.
type ItemStore struct {
	mu      sync.RWMutex
	items   map[string]domain.Item
	bundles map[string][]domain.Bundle
}

// NewItemStore creates a new in-memory item store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		items:   make(map[string]domain.Item),
		bundles: make(map[string][]domain.Bundle),
	}
}

// SaveItem stores or updates an item.
func (s *ItemStore) SaveItem(_ context.Context, item *domain.Item) error {
	if item == nil || item.ID == "" || item.Handle == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.items {
		if id != item.ID && s.items[id].Handle == item.Handle {
			return domain.ErrAlreadyExists
		}
	}
	saved := *item
	saved.Metadata = copyStrings(item.Metadata)
	s.items[item.ID] = saved
	return nil
}

// GetItem retrieves an item by ID.
func (s *ItemStore) GetItem(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	item.Metadata = copyStrings(item.Metadata)
	return &item, nil
}

// GetItemByHandle retrieves an item by handle.
func (s *ItemStore) GetItemByHandle(_ context.Context, handle string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.items {
		if s.items[id].Handle == handle {
			item := s.items[id]
			item.Metadata = copyStrings(item.Metadata)
			return &item, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListItems returns all items ordered by handle.
func (s *ItemStore) ListItems(_ context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Item, 0, len(s.items))
	for id := range s.items {
		item := s.items[id]
		item.Metadata = copyStrings(item.Metadata)
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Handle < result[j].Handle })
	return result, nil
}

// DeleteItem removes an item and its bundles.
func (s *ItemStore) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	delete(s.bundles, id)
	return nil
}

// EnsureBundle returns the named bundle of an item, creating it if missing.
func (s *ItemStore) EnsureBundle(_ context.Context, itemID, name string) (*domain.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return nil, domain.ErrNotFound
	}
	for _, b := range s.bundles[itemID] {
		if b.Name == name {
			bundle := b
			return &bundle, nil
		}
	}
	bundle := domain.Bundle{ID: uuid.New().String(), ItemID: itemID, Name: name}
	s.bundles[itemID] = append(s.bundles[itemID], bundle)
	return &bundle, nil
}

// GetBundle returns the named bundle of an item.
func (s *ItemStore) GetBundle(_ context.Context, itemID, name string) (*domain.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bundles[itemID] {
		if b.Name == name {
			bundle := b
			return &bundle, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListBundles returns the bundles of an item ordered by name.
func (s *ItemStore) ListBundles(_ context.Context, itemID string) ([]domain.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := append([]domain.Bundle(nil), s.bundles[itemID]...)
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// copyStrings creates a shallow copy of a string map.
func copyStrings(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
