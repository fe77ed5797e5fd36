// Package database provides SQLite persistence for the tagify server.
//
// It stores:
//   - Libraries, including the durable per-library scan state machine
//   - Image documents keyed by a deterministic composite id
//   - Tags and image-tag associations
//
// Image ids are "<library_id>:<relative_path>" with the relative path
// normalized to forward slashes at write time; lookups additionally
// tolerate backslash separators from older writers. The database uses
// WAL mode for concurrent read performance, and schema creation plus
// index setup is idempotent and runs on every start.
package database
