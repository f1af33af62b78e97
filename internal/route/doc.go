// Package route computes distances and visit orderings over geographic
// points. Small point sets are solved exhaustively; larger ones use a
// nearest-neighbor approximation.
package route
