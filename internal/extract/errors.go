package extract

import "errors"

var (
	// ErrUnreadableMedia marks a corrupt or unsupported file. The scanner
	// logs it and continues; it never aborts a scan.
	ErrUnreadableMedia = errors.New("extract: unreadable media")

	// ErrInvalidCoordinates marks a malformed GPS tag set (bad rationals,
	// unknown or conflicting hemisphere references, out-of-range values).
	// Coordinates are treated as absent; the record is still produced.
	ErrInvalidCoordinates = errors.New("extract: invalid coordinates")
)
