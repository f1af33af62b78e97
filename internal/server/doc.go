// Package server exposes the HTTP API: map payloads, record listings,
// scan control, thumbnails, attractions, and route planning, plus health
// and Prometheus metrics endpoints.
package server
