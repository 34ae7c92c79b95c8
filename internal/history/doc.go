// Package history persists meeting transcripts in SQLite.
//
// A meeting row is upserted by its session ID while recording is in progress
// (so a crash loses at most one autosave interval) and stamped with an end
// time when the session finishes. The store doubles as an export sink.
//
// The schema is versioned through a schema_version table. Opening a database
// written by a different version fails with ErrSchemaMismatch; delete the
// file to start over.
package history
