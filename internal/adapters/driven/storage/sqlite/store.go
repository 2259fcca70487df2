package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/mediafilter/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.mediafilter/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".mediafilter", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// WAL lets the inbox watcher and the scheduler share the database.
	// Pragmas in the DSN apply to every pooled connection; item deletes
	// rely on foreign keys to cascade.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ItemStore returns an ItemStore interface backed by this store.
func (s *Store) ItemStore() driven.ItemStore {
	return &itemStore{store: s}
}

// BitstreamStore returns a BitstreamStore interface backed by this store.
func (s *Store) BitstreamStore() driven.BitstreamStore {
	return &bitstreamStore{store: s}
}

// FormatRegistry returns a FormatRegistry interface backed by this store.
func (s *Store) FormatRegistry() driven.FormatRegistry {
	return &formatRegistry{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
// Each NNN_name.up.sql file records its own version in schema_migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Item Store ====================

// itemStore implements driven.ItemStore.
type itemStore struct {
	store *Store
}

var _ driven.ItemStore = (*itemStore)(nil)

// SaveItem stores or updates an item.
func (s *itemStore) SaveItem(ctx context.Context, item *domain.Item) error {
	if item == nil || item.ID == "" || item.Handle == "" {
		return domain.ErrInvalidInput
	}

	metadataJSON, err := marshalStrings(item.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO items (id, handle, name, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			handle = excluded.handle,
			name = excluded.name,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, item.ID, item.Handle, item.Name, metadataJSON, item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("item handle %s: %w", item.Handle, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("saving item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (s *itemStore) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, handle, name, metadata, created_at, updated_at
		FROM items WHERE id = ?
	`, id)
	return scanItem(row)
}

// GetItemByHandle retrieves an item by handle.
func (s *itemStore) GetItemByHandle(ctx context.Context, handle string) (*domain.Item, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, handle, name, metadata, created_at, updated_at
		FROM items WHERE handle = ?
	`, handle)
	return scanItem(row)
}

// ListItems returns all items ordered by handle.
func (s *itemStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, handle, name, metadata, created_at, updated_at
		FROM items ORDER BY handle
	`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// DeleteItem removes an item. Bundles and bitstream records cascade.
func (s *itemStore) DeleteItem(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// EnsureBundle returns the named bundle of an item, creating it if missing.
func (s *itemStore) EnsureBundle(ctx context.Context, itemID, name string) (*domain.Bundle, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO bundles (id, item_id, name) VALUES (?, ?, ?)
		ON CONFLICT(item_id, name) DO NOTHING
	`, uuid.New().String(), itemID, name)
	if err != nil {
		return nil, fmt.Errorf("creating bundle: %w", err)
	}
	return s.GetBundle(ctx, itemID, name)
}

// GetBundle returns the named bundle of an item.
func (s *itemStore) GetBundle(ctx context.Context, itemID, name string) (*domain.Bundle, error) {
	var b domain.Bundle
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, item_id, name FROM bundles WHERE item_id = ? AND name = ?
	`, itemID, name).Scan(&b.ID, &b.ItemID, &b.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bundle: %w", err)
	}
	return &b, nil
}

// ListBundles returns the bundles of an item ordered by name.
func (s *itemStore) ListBundles(ctx context.Context, itemID string) ([]domain.Bundle, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, item_id, name FROM bundles WHERE item_id = ? ORDER BY name
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying bundles: %w", err)
	}
	defer rows.Close()

	var bundles []domain.Bundle //nolint:prealloc // size unknown from query
	for rows.Next() {
		var b domain.Bundle
		if err := rows.Scan(&b.ID, &b.ItemID, &b.Name); err != nil {
			return nil, fmt.Errorf("scanning bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bundles: %w", err)
	}
	return bundles, nil
}

// ==================== Bitstream Store ====================

// bitstreamStore implements driven.BitstreamStore.
type bitstreamStore struct {
	store *Store
}

var _ driven.BitstreamStore = (*bitstreamStore)(nil)

const bitstreamColumns = `id, item_id, bundle_id, name, description, format_id, size,
	checksum, store_key, metadata, created_at`

// SaveBitstream stores or updates a bitstream record.
func (s *bitstreamStore) SaveBitstream(ctx context.Context, bs *domain.Bitstream) error {
	if bs == nil || bs.ID == "" || bs.BundleID == "" {
		return domain.ErrInvalidInput
	}

	metadataJSON, err := marshalStrings(bs.Metadata)
	if err != nil {
		return err
	}
	if bs.CreatedAt.IsZero() {
		bs.CreatedAt = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO bitstreams (`+bitstreamColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			format_id = excluded.format_id,
			size = excluded.size,
			checksum = excluded.checksum,
			store_key = excluded.store_key,
			metadata = excluded.metadata
	`, bs.ID, bs.ItemID, bs.BundleID, bs.Name, bs.Description, bs.FormatID, bs.Size,
		bs.Checksum, bs.StoreKey, metadataJSON, bs.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving bitstream: %w", err)
	}
	return nil
}

// GetBitstream retrieves a bitstream by ID.
func (s *bitstreamStore) GetBitstream(ctx context.Context, id string) (*domain.Bitstream, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+bitstreamColumns+" FROM bitstreams WHERE id = ?", id)
	return scanBitstream(row)
}

// ListBitstreams returns the bitstreams of a bundle ordered by name.
func (s *bitstreamStore) ListBitstreams(ctx context.Context, bundleID string) ([]domain.Bitstream, error) {
	return s.query(ctx, `
		SELECT `+bitstreamColumns+` FROM bitstreams
		WHERE bundle_id = ? ORDER BY name, created_at
	`, bundleID)
}

// FindByName returns the bitstreams of a bundle with the given name.
func (s *bitstreamStore) FindByName(ctx context.Context, bundleID, name string) ([]domain.Bitstream, error) {
	return s.query(ctx, `
		SELECT `+bitstreamColumns+` FROM bitstreams
		WHERE bundle_id = ? AND name = ? ORDER BY created_at
	`, bundleID, name)
}

// DeleteBitstream removes a bitstream record.
func (s *bitstreamStore) DeleteBitstream(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM bitstreams WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting bitstream: %w", err)
	}
	return nil
}

func (s *bitstreamStore) query(ctx context.Context, query string, args ...any) ([]domain.Bitstream, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bitstreams: %w", err)
	}
	defer rows.Close()

	var result []domain.Bitstream //nolint:prealloc // size unknown from query
	for rows.Next() {
		bs, err := scanBitstream(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *bs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bitstreams: %w", err)
	}
	return result, nil
}

// ==================== Format Registry ====================

// formatRegistry implements driven.FormatRegistry.
type formatRegistry struct {
	store *Store
}

var _ driven.FormatRegistry = (*formatRegistry)(nil)

const formatColumns = "id, short_description, mime_type, description, extensions, internal"

// SaveFormat stores or updates a format.
func (r *formatRegistry) SaveFormat(ctx context.Context, format *domain.BitstreamFormat) error {
	if format == nil || format.ID == "" || format.ShortDescription == "" {
		return domain.ErrInvalidInput
	}

	extJSON, err := json.Marshal(format.Extensions)
	if err != nil {
		return fmt.Errorf("marshalling extensions: %w", err)
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO bitstream_formats (`+formatColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			short_description = excluded.short_description,
			mime_type = excluded.mime_type,
			description = excluded.description,
			extensions = excluded.extensions,
			internal = excluded.internal
	`, format.ID, format.ShortDescription, format.MIMEType, format.Description,
		string(extJSON), boolToInt(format.Internal))
	if isUniqueViolation(err) {
		return fmt.Errorf("format %s: %w", format.ShortDescription, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("saving format: %w", err)
	}
	return nil
}

// GetFormat retrieves a format by ID.
func (r *formatRegistry) GetFormat(ctx context.Context, id string) (*domain.BitstreamFormat, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+formatColumns+" FROM bitstream_formats WHERE id = ?", id)
	return scanFormat(row)
}

// FindByShortDescription resolves a format string.
func (r *formatRegistry) FindByShortDescription(ctx context.Context, shortDescription string) (*domain.BitstreamFormat, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+formatColumns+" FROM bitstream_formats WHERE short_description = ?", shortDescription)
	return scanFormat(row)
}

// FindByMIMEType returns the first format with the MIME type.
func (r *formatRegistry) FindByMIMEType(ctx context.Context, mimeType string) (*domain.BitstreamFormat, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT `+formatColumns+` FROM bitstream_formats
		WHERE mime_type = ? COLLATE NOCASE
		ORDER BY short_description LIMIT 1
	`, mimeType)
	return scanFormat(row)
}

// FindByExtension returns the first format claiming the extension.
// Extensions are stored as a JSON array, so matching happens in Go.
func (r *formatRegistry) FindByExtension(ctx context.Context, ext string) (*domain.BitstreamFormat, error) {
	formats, err := r.ListFormats(ctx)
	if err != nil {
		return nil, err
	}
	for i := range formats {
		if formats[i].HasExtension(ext) {
			return &formats[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListFormats returns all formats ordered by short description.
func (r *formatRegistry) ListFormats(ctx context.Context) ([]domain.BitstreamFormat, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT "+formatColumns+" FROM bitstream_formats ORDER BY short_description")
	if err != nil {
		return nil, fmt.Errorf("querying formats: %w", err)
	}
	defer rows.Close()

	var formats []domain.BitstreamFormat //nolint:prealloc // size unknown from query
	for rows.Next() {
		f, err := scanFormat(rows)
		if err != nil {
			return nil, err
		}
		formats = append(formats, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating formats: %w", err)
	}
	return formats, nil
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem scans one item row.
func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var metadataJSON sql.NullString
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&item.ID, &item.Handle, &item.Name, &metadataJSON,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}

	metadata, err := unmarshalStrings(metadataJSON)
	if err != nil {
		return nil, err
	}
	item.Metadata = metadata
	if createdAt.Valid {
		item.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		item.UpdatedAt = updatedAt.Time
	}
	return &item, nil
}

// scanBitstream scans one bitstream row.
func scanBitstream(row rowScanner) (*domain.Bitstream, error) {
	var bs domain.Bitstream
	var metadataJSON sql.NullString
	var createdAt sql.NullTime

	if err := row.Scan(&bs.ID, &bs.ItemID, &bs.BundleID, &bs.Name, &bs.Description,
		&bs.FormatID, &bs.Size, &bs.Checksum, &bs.StoreKey, &metadataJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning bitstream: %w", err)
	}

	metadata, err := unmarshalStrings(metadataJSON)
	if err != nil {
		return nil, err
	}
	bs.Metadata = metadata
	if createdAt.Valid {
		bs.CreatedAt = createdAt.Time
	}
	return &bs, nil
}

// scanFormat scans one format row.
func scanFormat(row rowScanner) (*domain.BitstreamFormat, error) {
	var f domain.BitstreamFormat
	var extJSON sql.NullString
	var internal int

	if err := row.Scan(&f.ID, &f.ShortDescription, &f.MIMEType, &f.Description,
		&extJSON, &internal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning format: %w", err)
	}

	if extJSON.Valid && extJSON.String != "" {
		if err := json.Unmarshal([]byte(extJSON.String), &f.Extensions); err != nil {
			return nil, fmt.Errorf("unmarshaling extensions: %w", err)
		}
	}
	f.Internal = internal == 1
	return &f, nil
}

// marshalStrings encodes a metadata map, storing NULL for an empty map.
func marshalStrings(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings decodes a metadata column.
func unmarshalStrings(s sql.NullString) (map[string]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return m, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullTime stores a zero time as NULL.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
