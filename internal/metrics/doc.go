// Package metrics provides Prometheus metrics for the album pipeline:
// scanning, extraction, the media store, thumbnails, geocoding and HTTP.
package metrics
