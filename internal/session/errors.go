package session

import "errors"

// Session lifecycle error types. Not-found and precondition failures are
// distinct from print failures: the former reject before any state change.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoImage         = errors.New("no image available to print")
	ErrImageLocked     = errors.New("image can no longer be replaced")
	ErrPrintInProgress = errors.New("print already in progress")
	ErrSessionComplete = errors.New("session already completed")
	ErrPrintFailed     = errors.New("print operation failed")
	ErrTokenExhausted  = errors.New("token generation exhausted retries")
)
