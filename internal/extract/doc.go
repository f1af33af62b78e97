// Package extract turns media files into normalized store.MediaRecord
// values at the pipeline boundary.
//
// Photos are read for embedded EXIF tags: GPS coordinates arrive in
// degree/minute/second form and are converted to signed decimal degrees
// using the hemisphere reference tags; the capture timestamp comes from
// DateTimeOriginal. Videos are probed via ffprobe for container
// creation_time and ISO 6709 location tags, falling back to the file
// modification time when the container carries no timestamp.
//
// Malformed GPS data is nulled, never propagated partially. Extraction is
// idempotent: the same unmodified file always yields the same record.
package extract
