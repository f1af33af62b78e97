// Package mapbuilder turns stored media records into a map payload:
// one marker per geotagged record plus a chronological route polyline.
//
// Records without coordinates never produce markers. Ordering is by
// capture time with untimed records last, so the route follows the
// journey as it happened.
package mapbuilder
