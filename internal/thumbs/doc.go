// Package thumbs generates and caches 200x200 JPEG thumbnails for photos
// and videos. Thumbnails are cached on disk keyed by content fingerprint,
// so a modified file invalidates its cached thumbnail automatically.
package thumbs
