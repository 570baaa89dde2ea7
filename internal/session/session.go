// Package session owns the authenticated identity lifecycle. The Manager
// is the only component allowed to mutate the process-wide session.
package session

import (
	"github.com/louisbranch/depths.social/internal/identity"
)

// State identifies where the session is in its lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateError
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Session is a point-in-time snapshot of the identity lifecycle. Principal
// and Profile are set only when State is StateAuthenticated, and Principal
// never changes for the lifetime of one authenticated session.
type Session struct {
	State     State
	Principal string
	Profile   *identity.Profile
}

// Authenticated reports whether the snapshot carries a usable identity.
func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated && s.Principal != "" && s.Profile != nil
}
