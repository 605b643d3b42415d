package interfaces

import (
	"context"

	"snapbooth/pkg/types"
)

// EventJournal is an append-only record of session transitions, kept for
// observability. It is not a session store and not a replay log: sessions
// stay in memory and subscribers never see historical events.
type EventJournal interface {
	// Record appends one event. Failures are the caller's to log; they never
	// affect session state.
	Record(ctx context.Context, event *types.Event) error

	// SessionEvents returns the recorded events for a token, oldest first.
	SessionEvents(ctx context.Context, token string) ([]*types.Event, error)

	// HealthCheck verifies the journal backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close flushes and releases the backend.
	Close() error
}
