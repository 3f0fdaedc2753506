package auth

import "fmt"

// State is the position of a Session in the login state machine.
type State int

// Session states. A login runs
// Init → ChallengeSent → {PasswordVerified → AwaitingMFA | AwaitingDeviceVerifier} → Authenticated,
// and any failure lands in Failed.
const (
	StateInit State = iota
	StateChallengeSent
	StatePasswordVerified
	StateAwaitingMFA
	StateAwaitingDeviceVerifier
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateChallengeSent:
		return "CHALLENGE_SENT"
	case StatePasswordVerified:
		return "PASSWORD_VERIFIED"
	case StateAwaitingMFA:
		return "AWAITING_MFA"
	case StateAwaitingDeviceVerifier:
		return "AWAITING_DEVICE_VERIFIER"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Transition is one observed state change.
type Transition struct {
	From State
	To   State
}

// TransitionHook observes every state change of a Session. It is called
// without any Session lock held, in the order the changes happened.
type TransitionHook func(Transition)
