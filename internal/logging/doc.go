// Package logging provides leveled logging for the album pipeline.
//
// Levels are controlled by the DEBUG and LOG_LEVEL environment variables.
// In addition to stderr, output can be teed into date-named log files
// (journeymap_YYYY-MM-DD.log) which roll over when the date changes; scan
// events and errors land there one line at a time for external consumption.
package logging
