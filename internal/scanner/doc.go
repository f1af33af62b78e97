// Package scanner walks the media directory, extracts metadata from new or
// changed files, and reconciles the result into the store.
//
// A scan is incremental: files whose fingerprint is unchanged are only
// touched, not re-extracted. Unreadable files are logged and skipped;
// they never abort a scan. After a full walk, records whose files have
// disappeared are pruned. At most one scan runs at a time.
package scanner
