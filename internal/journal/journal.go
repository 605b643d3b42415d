package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"snapbooth/pkg/database"
	"snapbooth/pkg/types"
)

// Journal is the append-only sqlite record of session transitions. All
// writes funnel through a single goroutine; SQLite allows one writer at a
// time and serializing here avoids lock contention between request handlers.
// Reads run concurrently against WAL snapshots.
type Journal struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// New opens the journal database, bootstraps the schema and starts the
// writer goroutine.
func New(config *database.Config) (*Journal, error) {
	db, err := database.Open(config)
	if err != nil {
		return nil, err
	}

	if err := database.EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &Journal{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	j.wg.Add(1)
	go j.writeLoop()

	return j, nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()

	for {
		select {
		case op := <-j.writeChannel:
			op.result <- op.operation(j.db)

		case <-j.shutdown:
			log.Println("Journal write loop shutting down")
			return
		}
	}
}

func (j *Journal) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return fmt.Errorf("journal is closed")
	}
	j.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case j.writeChannel <- writeOperation{operation: operation, result: result}:
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-j.shutdown:
		return fmt.Errorf("journal is shutting down")
	}
}

// Record appends one event.
func (j *Journal) Record(ctx context.Context, event *types.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	return j.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO session_events (id, session_token, event_type, status, image_path, detail, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			event.ID, event.SessionToken, event.Type, string(event.Status),
			event.ImagePath, event.Detail, event.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
		return nil
	})
}

// SessionEvents returns all events recorded for a token, oldest first.
func (j *Journal) SessionEvents(ctx context.Context, token string) ([]*types.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_token, event_type, status, image_path, detail, timestamp
		FROM session_events
		WHERE session_token = ?
		ORDER BY timestamp ASC, id ASC`, token)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		var event types.Event
		var status string
		if err := rows.Scan(&event.ID, &event.SessionToken, &event.Type,
			&status, &event.ImagePath, &event.Detail, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Status = types.Status(status)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies connectivity and schema presence.
func (j *Journal) HealthCheck(ctx context.Context) error {
	if err := j.db.PingContext(ctx); err != nil {
		return fmt.Errorf("journal database unreachable: %w", err)
	}
	return database.NewSchemaValidator(j.db).ValidateTablesExist()
}

// Close stops the writer goroutine and closes the database. Pending writes
// queued before Close are abandoned; the journal is telemetry, not state.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.shutdown)

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("Journal writer did not stop in time")
	}

	return j.db.Close()
}
