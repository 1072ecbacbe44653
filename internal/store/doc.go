// Package store provides SQLite-backed storage for TAXII services,
// collections, content blocks, inbox audit records, result sets and
// subscriptions.
//
// Store implements taxii.Repository. Content queries are filtered by
// collection, time window and content bindings:
//   - Begin is exclusive, End is inclusive
//   - Bindings are OR-ed; a binding listing subtypes matches only those
//   - Results are ordered by timestamp_label, then id
//
// Times are stored as INTEGER unix nanoseconds in UTC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// NewLogging decorates any taxii.Repository with per-call slog records.
package store
