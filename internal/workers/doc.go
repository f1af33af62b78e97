// Package workers provides worker pool sizing based on available CPU
// resources and task characteristics.
package workers
