// Package common holds sentinel errors shared across the extraction domain. Handlers map
// them onto connect codes.
package common

import "errors"

var (
	ErrNotFound        = errors.New("requested item not found")
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	// ErrUnavailable marks a dependency (classifier, database) that cannot serve right now.
	ErrUnavailable = errors.New("dependency unavailable")
	// ErrStoreDisabled is returned by lookups when no database is configured.
	ErrStoreDisabled = errors.New("extraction store is disabled")
)
