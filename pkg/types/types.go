package types

import (
	"time"
)

// Status is the lifecycle state of a photo session.
// Transitions: waiting → image_ready → printing → printed | error.
// printed and error are terminal.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusImageReady Status = "image_ready"
	StatusPrinting   Status = "printing"
	StatusPrinted    Status = "printed"
	StatusError      Status = "error"
)

// Notification type constants for the kiosk wire contract.
const (
	NotificationImageReady   = "image_ready"
	NotificationStatusUpdate = "status_update"
	NotificationPrintStatus  = "print_status"
)

// Session ties together one kiosk display, one mobile uploader and one photo.
// The token is the sole access-control mechanism: unguessable, generated at
// creation, never reused. ImagePath is set exactly when the status implies an
// image exists (image_ready, printing, printed).
type Session struct {
	Token     string    `json:"token"`
	Status    Status    `json:"status"`
	ImagePath string    `json:"imagePath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasImage reports whether an image has been associated with the session.
func (s Session) HasImage() bool {
	return s.ImagePath != ""
}

// Terminal reports whether the session reached a state with no outgoing
// transitions.
func (s Session) Terminal() bool {
	return s.Status == StatusPrinted || s.Status == StatusError
}

// Notification is the self-describing text payload pushed to session
// subscribers. Field names match what the kiosk display consumes.
type Notification struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Status    Status `json:"status,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Journal event type constants.
const (
	EventSessionCreated = "session_created"
	EventImageUploaded  = "image_uploaded"
	EventPrintStarted   = "print_started"
	EventPrintCompleted = "print_completed"
	EventPrintFailed    = "print_failed"
)

// Event is one append-only journal record of a session transition.
type Event struct {
	ID           string    `json:"id"`
	SessionToken string    `json:"session_token"`
	Type         string    `json:"type"`
	Status       Status    `json:"status,omitempty"`
	ImagePath    string    `json:"image_path,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
