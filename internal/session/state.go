// ABOUTME: Session state machine
// ABOUTME: Anonymous, Authenticating and Authenticated with explicit legal transitions

package session

import "fmt"

// State is the authentication state of the session
type State string

const (
	Anonymous      State = "anonymous"
	Authenticating State = "authenticating"
	Authenticated  State = "authenticated"
)

// validTransitions lists the states reachable from each state.
// Authenticated -> Authenticated covers identity refresh; Anonymous -> Authenticated
// covers restoring a persisted credential.
var validTransitions = map[State][]State{
	Anonymous:      {Authenticating, Authenticated},
	Authenticating: {Authenticated, Anonymous},
	Authenticated:  {Authenticated, Anonymous},
}

// CanTransitionTo reports whether next is reachable from s
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// TransitionError is returned when an operation needs an illegal transition
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move session from %s to %s", e.From, e.To)
}
