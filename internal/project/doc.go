// Package project persists the editing data model in a single SQLite file
// and exposes typed entity access for the command layer.
//
// The Store owns the database connection, schema initialization, entity
// upserts, the append-only command log with snapshots, and the read-only
// query surface consumed by playback collaborators. One project file holds
// one project tree: sequences own tracks, tracks own clips, clips reference
// media by id only.
//
// Every save is an explicit upsert keyed on a caller-supplied uuid so replay
// produces identical rows regardless of insertion order. Loads assert
// referential integrity and valid rates rather than defaulting missing
// fields.
//
// Treat this package as the single source of truth for the persisted shape;
// schema changes bump schemaVersion in schema.go.
package project
