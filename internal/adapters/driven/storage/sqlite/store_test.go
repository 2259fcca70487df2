package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "mediafilter-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestItem creates an item to satisfy foreign key constraints.
func createTestItem(t *testing.T, store *Store, id, handle string) *domain.Item {
	t.Helper()
	item := &domain.Item{
		ID:       id,
		Handle:   handle,
		Name:     "Item " + id,
		Metadata: map[string]string{"dc.title": "Title " + id},
	}
	require.NoError(t, store.ItemStore().SaveItem(context.Background(), item))
	return item
}

// createTestBundle creates a bundle for an existing item.
func createTestBundle(t *testing.T, store *Store, itemID, name string) *domain.Bundle {
	t.Helper()
	bundle, err := store.ItemStore().EnsureBundle(context.Background(), itemID, name)
	require.NoError(t, err)
	return bundle
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "metadata.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var version int
	err := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	tables := []string{
		"items",
		"bundles",
		"bitstream_formats",
		"bitstreams",
		"scheduled_tasks",
		"task_results",
	}
	for _, table := range tables {
		var exists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "table %s should exist", table)
	}
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	createTestItem(t, store, "item-1", "local/1")
	require.NoError(t, store.Close())

	reopened, err := NewStore(tempDir)
	require.NoError(t, err)
	defer reopened.Close()

	item, err := reopened.ItemStore().GetItemByHandle(context.Background(), "local/1")
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var fkEnabled int
	err := store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	require.NoError(t, err)
	assert.Equal(t, 1, fkEnabled)
}

func TestStore_Close(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.Error(t, store.db.Ping())
}

func TestStore_InterfaceGetters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.NotNil(t, store.ItemStore())
	assert.NotNil(t, store.BitstreamStore())
	assert.NotNil(t, store.FormatRegistry())
	assert.NotNil(t, store.SchedulerStore())
}

// ==================== ItemStore Tests ====================

func TestItemStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, store, "item-1", "local/1")

	got, err := store.ItemStore().GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "local/1", got.Handle)
	assert.Equal(t, "Item item-1", got.Name)
	assert.Equal(t, "Title item-1", got.Metadata["dc.title"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestItemStore_SaveItem_InvalidInput(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	assert.ErrorIs(t, store.ItemStore().SaveItem(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.ItemStore().SaveItem(ctx, &domain.Item{ID: "x"}), domain.ErrInvalidInput)
}

func TestItemStore_SaveItem_DuplicateHandle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	createTestItem(t, store, "item-1", "local/1")
	err := store.ItemStore().SaveItem(context.Background(), &domain.Item{ID: "item-2", Handle: "local/1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestItemStore_SaveItem_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	item := createTestItem(t, store, "item-1", "local/1")
	item.Name = "Renamed"
	item.Metadata = nil
	item.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.ItemStore().SaveItem(ctx, item))

	got, err := store.ItemStore().GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Nil(t, got.Metadata)
}

func TestItemStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.ItemStore().GetItem(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.ItemStore().GetItemByHandle(ctx, "local/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestItemStore_ListItems_OrderedByHandle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	createTestItem(t, store, "c", "local/c")
	createTestItem(t, store, "a", "local/a")
	createTestItem(t, store, "b", "local/b")

	items, err := store.ItemStore().ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "local/a", items[0].Handle)
	assert.Equal(t, "local/b", items[1].Handle)
	assert.Equal(t, "local/c", items[2].Handle)
}

func TestItemStore_EnsureBundle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, store, "item-1", "local/1")

	first := createTestBundle(t, store, "item-1", domain.BundleText)
	second := createTestBundle(t, store, "item-1", domain.BundleText)
	assert.Equal(t, first.ID, second.ID)
	createTestBundle(t, store, "item-1", domain.BundleOriginal)

	bundles, err := store.ItemStore().ListBundles(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, domain.BundleOriginal, bundles[0].Name)
	assert.Equal(t, domain.BundleText, bundles[1].Name)

	_, err = store.ItemStore().EnsureBundle(ctx, "missing", domain.BundleText)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.ItemStore().GetBundle(ctx, "item-1", domain.BundleThumbnail)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestItemStore_DeleteItem_Cascades(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, store, "item-1", "local/1")
	bundle := createTestBundle(t, store, "item-1", domain.BundleOriginal)
	require.NoError(t, store.BitstreamStore().SaveBitstream(ctx, &domain.Bitstream{
		ID: "bs-1", ItemID: "item-1", BundleID: bundle.ID, Name: "a.txt",
	}))

	require.NoError(t, store.ItemStore().DeleteItem(ctx, "item-1"))

	_, err := store.ItemStore().GetItem(ctx, "item-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.BitstreamStore().GetBitstream(ctx, "bs-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	bundles, err := store.ItemStore().ListBundles(ctx, "item-1")
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

// ==================== BitstreamStore Tests ====================

func TestBitstreamStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, store, "item-1", "local/1")
	bundle := createTestBundle(t, store, "item-1", domain.BundleText)

	bs := &domain.Bitstream{
		ID:          "bs-1",
		ItemID:      "item-1",
		BundleID:    bundle.ID,
		Name:        "doc.pdf.txt",
		Description: "Extracted text",
		FormatID:    "fmt-text",
		Size:        42,
		Checksum:    "abc123",
		StoreKey:    "key-1",
	}
	bs.SetMetadata(domain.MetaSourceID, "bs-0")
	require.NoError(t, store.BitstreamStore().SaveBitstream(ctx, bs))

	got, err := store.BitstreamStore().GetBitstream(ctx, "bs-1")
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf.txt", got.Name)
	assert.Equal(t, "Extracted text", got.Description)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, "key-1", got.StoreKey)
	assert.Equal(t, "bs-0", got.DerivedFrom())
	assert.False(t, got.CreatedAt.IsZero())
}

func TestBitstreamStore_SaveBitstream_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, store, "item-1", "local/1")
	bundle := createTestBundle(t, store, "item-1", domain.BundleText)
	bs := &domain.Bitstream{ID: "bs-1", ItemID: "item-1", BundleID: bundle.ID, Name: "a.txt"}
	require.NoError(t, store.BitstreamStore().SaveBitstream(ctx, bs))

	bs.Description = "updated"
	bs.SetMetadata(domain.MetaGeneratedBy, "plaintext")
	require.NoError(t, store.BitstreamStore().SaveBitstream(ctx, bs))

	got, err := store.BitstreamStore().GetBitstream(ctx, "bs-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, "plaintext", got.Metadata[domain.MetaGeneratedBy])
}

func TestBitstreamStore_SaveBitstream_UnknownBundle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	createTestItem(t, store, "item-1", "local/1")
	err := store.BitstreamStore().SaveBitstream(context.Background(), &domain.Bitstream{
		ID: "bs-1", ItemID: "item-1", BundleID: "missing", Name: "a.txt",
	})
	assert.Error(t, err)
}

func TestBitstreamStore_ListAndFind(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, store, "item-1", "local/1")
	text := createTestBundle(t, store, "item-1", domain.BundleText)
	thumb := createTestBundle(t, store, "item-1", domain.BundleThumbnail)

	base := time.Now().UTC().Add(-time.Hour)
	for i, bs := range []domain.Bitstream{
		{ID: "1", BundleID: text.ID, Name: "b.txt"},
		{ID: "2", BundleID: text.ID, Name: "a.txt"},
		{ID: "3", BundleID: text.ID, Name: "a.txt"},
		{ID: "4", BundleID: thumb.ID, Name: "a.jpg"},
	} {
		bs := bs
		bs.ItemID = "item-1"
		bs.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.BitstreamStore().SaveBitstream(ctx, &bs))
	}

	list, err := store.BitstreamStore().ListBitstreams(ctx, text.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "2", list[0].ID)
	assert.Equal(t, "3", list[1].ID)
	assert.Equal(t, "1", list[2].ID)

	found, err := store.BitstreamStore().FindByName(ctx, text.ID, "a.txt")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "2", found[0].ID)

	none, err := store.BitstreamStore().FindByName(ctx, thumb.ID, "a.txt")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBitstreamStore_Delete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestItem(t, store, "item-1", "local/1")
	bundle := createTestBundle(t, store, "item-1", domain.BundleText)
	require.NoError(t, store.BitstreamStore().SaveBitstream(ctx, &domain.Bitstream{
		ID: "bs-1", ItemID: "item-1", BundleID: bundle.ID, Name: "a.txt",
	}))

	require.NoError(t, store.BitstreamStore().DeleteBitstream(ctx, "bs-1"))
	_, err := store.BitstreamStore().GetBitstream(ctx, "bs-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, store.BitstreamStore().DeleteBitstream(ctx, "bs-1"))
}

// ==================== FormatRegistry Tests ====================

func seedFormats(t *testing.T, store *Store) {
	t.Helper()
	for _, f := range domain.DefaultFormats() {
		f := f
		require.NoError(t, store.FormatRegistry().SaveFormat(context.Background(), &f))
	}
}

func TestFormatRegistry_SeedIsIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	seedFormats(t, store)
	seedFormats(t, store)

	formats, err := store.FormatRegistry().ListFormats(context.Background())
	require.NoError(t, err)
	assert.Len(t, formats, len(domain.DefaultFormats()))
	for i := 1; i < len(formats); i++ {
		assert.Less(t, formats[i-1].ShortDescription, formats[i].ShortDescription)
	}
}

func TestFormatRegistry_Lookups(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	seedFormats(t, store)
	reg := store.FormatRegistry()

	f, err := reg.FindByShortDescription(ctx, "Text")
	require.NoError(t, err)
	assert.Equal(t, "fmt-text", f.ID)
	assert.Equal(t, []string{"txt", "asc", "text"}, f.Extensions)

	f, err = reg.FindByMIMEType(ctx, "Application/PDF")
	require.NoError(t, err)
	assert.Equal(t, "Adobe PDF", f.ShortDescription)

	f, err = reg.FindByExtension(ctx, ".htm")
	require.NoError(t, err)
	assert.Equal(t, "HTML", f.ShortDescription)

	f, err = reg.GetFormat(ctx, "fmt-gif")
	require.NoError(t, err)
	assert.Equal(t, "GIF", f.ShortDescription)
}

func TestFormatRegistry_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	seedFormats(t, store)
	reg := store.FormatRegistry()

	_, err := reg.FindByShortDescription(ctx, "Quantum Text")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = reg.FindByMIMEType(ctx, "application/x-nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = reg.FindByExtension(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = reg.GetFormat(ctx, "fmt-nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFormatRegistry_DuplicateShortDescription(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	seedFormats(t, store)

	err := store.FormatRegistry().SaveFormat(context.Background(), &domain.BitstreamFormat{
		ID: "fmt-other", ShortDescription: "Text",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestFormatRegistry_InternalFlag(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.FormatRegistry().SaveFormat(ctx, &domain.BitstreamFormat{
		ID: "fmt-license", ShortDescription: "License", Internal: true,
	}))
	f, err := store.FormatRegistry().GetFormat(ctx, "fmt-license")
	require.NoError(t, err)
	assert.True(t, f.Internal)
	assert.Empty(t, f.Extensions)
}
