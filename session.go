package auth

import (
	"fmt"
)

// SessionPhase describes whether the session state machine has settled.
type SessionPhase string

const (
	// PhaseLoading means a transition sequence is in flight; route guards
	// must suspend rather than make an authorization decision.
	PhaseLoading SessionPhase = "loading"
	// PhaseReady means the last identity-change event has fully resolved.
	PhaseReady SessionPhase = "ready"
)

// Session is the aggregate authorization state consumed by route guards:
// identity, role, and whether a transition is still resolving. Values are
// immutable snapshots; the controller hands out a fresh one per read.
type Session struct {
	Identity Identity
	Role     Role
	Loading  bool
}

// Authenticated reports whether an identity is present. Role is meaningful
// only when this returns true.
func (s Session) Authenticated() bool {
	return s.Identity != nil
}

// Phase maps the loading flag onto the two machine phases.
func (s Session) Phase() SessionPhase {
	if s.Loading {
		return PhaseLoading
	}
	return PhaseReady
}

func (s Session) String() string {
	who := "<anonymous>"
	if s.Identity != nil {
		who = s.Identity.Email()
	}
	return fmt.Sprintf("identity=%s role=%s phase=%s", who, s.Role, s.Phase())
}
