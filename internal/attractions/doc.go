// Package attractions imports points of interest from CSV and marks them
// visited when a geotagged photo was captured within walking distance.
package attractions
