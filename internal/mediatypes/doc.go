// Package mediatypes classifies media files by extension for the album
// pipeline.
//
// Supported file types:
//   - Photos: jpg, jpeg, png, heic
//   - Videos: mp4, mov
//
// Everything else is KindOther and is skipped by the scanner.
package mediatypes
