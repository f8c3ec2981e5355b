// Package model defines the shared identifier types used across the query
// core. It has no dependencies and exists to break import cycles between the
// log, segment and query packages.
package model
