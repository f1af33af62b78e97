// Package store provides SQLite persistence for the album pipeline.
//
// It holds:
//   - Media records (path, fingerprint, kind, capture time, GPS coordinates,
//     thumbnail reference, reverse-geocoded location name)
//   - Attraction points imported from CSV
//
// The database uses WAL mode so concurrent readers are always safe; writes
// are serialized through a single-writer mutex, which keeps the
// check-then-act of the fingerprint upsert atomic. Busy/locked write errors
// are retried once and then surfaced to the caller.
package store
