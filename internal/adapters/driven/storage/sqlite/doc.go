// Package sqlite keeps repository metadata in a single SQLite database
// (~/.mediafilter/data/metadata.db by default) through modernc.org/sqlite,
// so no cgo toolchain is needed.
//
// One Store serves ItemStore, BitstreamStore and FormatRegistry; a
// SchedulerStore shares its connection for task state and run history.
// Bitstream content is not stored here, only its checksum and location in
// the asset store.
//
// Schema changes are numbered .up.sql/.down.sql pairs under migrations/,
// applied in order at open and recorded in schema_migrations. The pool runs
// in WAL mode with a busy timeout and foreign keys on for every connection.
package sqlite
