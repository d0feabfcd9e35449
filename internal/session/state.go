package session

import (
	"errors"
	"fmt"
)

// State is a step of the session authorization machine.
type State int

const (
	Disconnected State = iota
	Connected
	AwaitingCode
	AwaitingPassword
	Authorized
	Failed
)

var stateNames = [...]string{
	Disconnected:     "disconnected",
	Connected:        "connected",
	AwaitingCode:     "awaiting_code",
	AwaitingPassword: "awaiting_password",
	Authorized:       "authorized",
	Failed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Authorized || s == Failed
}

var (
	// ErrPasswordNeeded is returned by Client.SignIn when the account has
	// two-step verification enabled.
	ErrPasswordNeeded = errors.New("two-step verification password required")

	// ErrNoPhone means the stored session is not authorized and there is no
	// phone number to start a login with.
	ErrNoPhone = errors.New("not authorized and no phone number configured")

	// ErrSessionBusy is returned when another run already owns the session.
	ErrSessionBusy = errors.New("session is in use by another run")
)

// AuthError is the fatal outcome of a session that could not reach
// Authorized. State is where the machine was when it failed.
type AuthError struct {
	State State
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed in state %s: %v", e.State, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
