package interfaces

import "snapbooth/pkg/types"

// PushChannel is the core's view of a long-lived push connection (typically a
// WebSocket). The hub needs exactly two capabilities: delivering one text
// payload, and tearing the channel down.
type PushChannel interface {
	// Send delivers one self-describing text payload to the subscriber.
	// Implementations must be safe for concurrent use; a non-nil error means
	// the channel is no longer usable and will be pruned by the hub.
	Send(data []byte) error

	// Close releases the channel's resources. Must be idempotent: teardown
	// can be triggered by close and error events in any order.
	Close() error
}

// Notifier publishes best-effort real-time hints to a session's subscribers.
// Publishing never fails from the caller's perspective: zero subscribers is a
// silent no-op, and status queries remain the source of truth.
type Notifier interface {
	// ImageReady announces that an image was stored for the session.
	ImageReady(token, imageURL string)

	// StatusUpdate announces a session status change with a human-readable
	// message.
	StatusUpdate(token string, status types.Status, message string)
}
