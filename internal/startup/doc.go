// Package startup loads configuration from the environment, prepares the
// data directories, and owns the structured startup/shutdown log output.
package startup
