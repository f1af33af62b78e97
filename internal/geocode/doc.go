// Package geocode resolves GPS coordinates to human-readable place names
// via a Nominatim-compatible reverse geocoding endpoint.
//
// Results are cached on disk keyed by coordinates rounded to two decimal
// places (roughly 1 km), and requests are rate limited to one per second
// per the Nominatim usage policy.
package geocode
