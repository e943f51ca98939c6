package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveUpstreams means no upstream is currently active.
	ErrNoActiveUpstreams = errors.New("no active upstreams")

	// ErrNoPrincipal means the principal header was absent from the request.
	ErrNoPrincipal = errors.New("no principal header present")
)

// ErrUnknownGroupType is returned when a request's first path segment does
// not match any routable group type.
type ErrUnknownGroupType struct {
	GroupType string
}

func (e *ErrUnknownGroupType) Error() string {
	return fmt.Sprintf("unknown group type: %s", e.GroupType)
}

// ErrReservedGroupType is reported when an upstream declares a group type
// that collides with a bridge-reserved path such as /health.
type ErrReservedGroupType struct {
	GroupType string
	Upstream  string
}

func (e *ErrReservedGroupType) Error() string {
	return fmt.Sprintf("upstream %s declares group type %q which collides with a reserved bridge path", e.Upstream, e.GroupType)
}
