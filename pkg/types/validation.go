package types

import (
	"regexp"
)

// Tokens are uuid-shaped but treated as opaque; the format check only guards
// against garbage reaching the store or the journal.
var tokenRegex = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// IsValidToken checks if a session token meets format requirements.
func IsValidToken(token string) bool {
	if len(token) < 8 || len(token) > 64 {
		return false
	}
	return tokenRegex.MatchString(token)
}

// IsValidStatus checks if the status is one of the defined lifecycle states.
func IsValidStatus(status Status) bool {
	switch status {
	case StatusWaiting, StatusImageReady, StatusPrinting, StatusPrinted, StatusError:
		return true
	default:
		return false
	}
}

// IsValidNotificationType checks if the notification type is part of the
// kiosk wire contract.
func IsValidNotificationType(t string) bool {
	switch t {
	case NotificationImageReady, NotificationStatusUpdate, NotificationPrintStatus:
		return true
	default:
		return false
	}
}

// Validate ensures the event carries enough to be journaled.
func (e *Event) Validate() error {
	if !IsValidToken(e.SessionToken) {
		return ErrInvalidToken
	}
	if e.Status != "" && !IsValidStatus(e.Status) {
		return ErrInvalidStatus
	}
	switch e.Type {
	case EventSessionCreated, EventImageUploaded, EventPrintStarted,
		EventPrintCompleted, EventPrintFailed:
		return nil
	default:
		return ErrInvalidEventType
	}
}
