package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"snapbooth/pkg/interfaces"
	"snapbooth/pkg/types"
)

// Orchestrator drives the session state machine. It validates preconditions,
// mutates sessions through the Store, and publishes a notification on every
// meaningful transition. Mutation is serialized per token: one session's
// print never blocks another session's operations.
type Orchestrator struct {
	store    *Store
	notifier interfaces.Notifier
	printer  interfaces.Printer
	journal  interfaces.EventJournal
	baseURL  string
	locks    sync.Map // token -> *sync.Mutex
}

// NewOrchestrator creates an orchestrator. journal may be nil, in which case
// transitions are not journaled. baseURL is the public base used to build
// image URLs in notifications.
func NewOrchestrator(store *Store, notifier interfaces.Notifier, printer interfaces.Printer, journal interfaces.EventJournal, baseURL string) *Orchestrator {
	return &Orchestrator{
		store:    store,
		notifier: notifier,
		printer:  printer,
		journal:  journal,
		baseURL:  baseURL,
	}
}

// Create allocates a new session in the waiting state.
func (o *Orchestrator) Create(ctx context.Context) (types.Session, error) {
	session, err := o.store.Create()
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to create session: %w", err)
	}

	o.recordEvent(ctx, session.Token, types.EventSessionCreated, session.Status, "", "")
	log.Printf("Created session: token=%s", session.Token)
	return session, nil
}

// Get retrieves a session by token. Unknown tokens are a not-found rejection;
// no session is ever materialized by a failed lookup.
func (o *Orchestrator) Get(token string) (types.Session, error) {
	session, ok := o.store.Get(token)
	if !ok {
		return types.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// AttachImage stores an image reference and moves the session to image_ready,
// publishing an image_ready notification. Allowed from waiting and from
// image_ready (re-upload replaces the image); once a print has started the
// image is locked.
func (o *Orchestrator) AttachImage(ctx context.Context, token, imagePath string) (types.Session, error) {
	mu := o.tokenLock(token)
	mu.Lock()
	defer mu.Unlock()

	session, ok := o.store.Get(token)
	if !ok {
		return types.Session{}, ErrSessionNotFound
	}

	switch {
	case session.Status == types.StatusPrinting:
		return session, ErrPrintInProgress
	case session.Terminal():
		return session, ErrImageLocked
	}

	updated, _ := o.store.SetImage(token, imagePath)
	o.notifier.ImageReady(token, o.imageURL(token))
	o.recordEvent(ctx, token, types.EventImageUploaded, updated.Status, imagePath, "")
	log.Printf("Image attached: token=%s path=%s", token, imagePath)
	return updated, nil
}

// Print runs the print flow for a session. uploadedPath, if non-empty, is an
// image that accompanied the print request; it is stored first (driving the
// session through image_ready) so that printing always implies a stored
// image. The transition and publish order is fixed: printing before the
// external call, printed or error after it, with session state re-fetched
// once the call resolves.
//
// Precondition failures (no image anywhere) reject before any state change;
// they are client errors, not print failures.
func (o *Orchestrator) Print(ctx context.Context, token, uploadedPath string) (types.Session, error) {
	mu := o.tokenLock(token)
	mu.Lock()

	session, ok := o.store.Get(token)
	if !ok {
		mu.Unlock()
		return types.Session{}, ErrSessionNotFound
	}

	switch {
	case session.Status == types.StatusPrinting:
		mu.Unlock()
		return session, ErrPrintInProgress
	case session.Terminal():
		mu.Unlock()
		return session, ErrSessionComplete
	}

	imagePath := session.ImagePath
	if uploadedPath != "" {
		session, _ = o.store.SetImage(token, uploadedPath)
		o.notifier.ImageReady(token, o.imageURL(token))
		o.recordEvent(ctx, token, types.EventImageUploaded, session.Status, uploadedPath, "")
		imagePath = uploadedPath
	}

	if imagePath == "" {
		mu.Unlock()
		return session, ErrNoImage
	}

	printing := types.StatusPrinting
	session, _ = o.store.Update(token, Fields{Status: &printing})
	o.notifier.StatusUpdate(token, types.StatusPrinting, "Printing in progress")
	o.recordEvent(ctx, token, types.EventPrintStarted, types.StatusPrinting, imagePath, "")
	mu.Unlock()

	// The external print operation may take arbitrary time. No locks are
	// held across it, and the pre-call session copy is not trusted after it.
	printErr := o.printer.Print(ctx, imagePath)

	mu.Lock()
	defer mu.Unlock()

	if _, ok := o.store.Get(token); !ok {
		// Session was swept while printing; there is no record to transition.
		if printErr != nil {
			return types.Session{}, fmt.Errorf("%w: %v", ErrPrintFailed, printErr)
		}
		return types.Session{}, ErrSessionNotFound
	}

	if printErr != nil {
		errored := types.StatusError
		session, _ = o.store.Update(token, Fields{Status: &errored})
		o.notifier.StatusUpdate(token, types.StatusError, "Failed to print image")
		o.recordEvent(ctx, token, types.EventPrintFailed, types.StatusError, imagePath, printErr.Error())
		log.Printf("Print failed: token=%s err=%v", token, printErr)
		return session, fmt.Errorf("%w: %v", ErrPrintFailed, printErr)
	}

	printed := types.StatusPrinted
	session, _ = o.store.Update(token, Fields{Status: &printed})
	o.notifier.StatusUpdate(token, types.StatusPrinted, "Print completed")
	o.recordEvent(ctx, token, types.EventPrintCompleted, types.StatusPrinted, imagePath, "")
	log.Printf("Print completed: token=%s", token)
	return session, nil
}

// Count returns the number of live sessions.
func (o *Orchestrator) Count() int {
	return o.store.Count()
}

// Sweep removes sessions older than maxAge along with their lock entries and
// returns the removed records so the caller can release stored images.
func (o *Orchestrator) Sweep(maxAge time.Duration) []types.Session {
	removed := o.store.Sweep(maxAge)
	for _, session := range removed {
		o.locks.Delete(session.Token)
	}
	if len(removed) > 0 {
		log.Printf("Swept %d expired sessions", len(removed))
	}
	return removed
}

func (o *Orchestrator) tokenLock(token string) *sync.Mutex {
	lock, _ := o.locks.LoadOrStore(token, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (o *Orchestrator) imageURL(token string) string {
	return fmt.Sprintf("%s/api/sessions/%s/image", o.baseURL, token)
}

// recordEvent journals a transition. Journal failures are logged, never
// propagated: the journal is telemetry, not state.
func (o *Orchestrator) recordEvent(ctx context.Context, token, eventType string, status types.Status, imagePath, detail string) {
	if o.journal == nil {
		return
	}

	event := &types.Event{
		ID:           uuid.New().String(),
		SessionToken: token,
		Type:         eventType,
		Status:       status,
		ImagePath:    imagePath,
		Detail:       detail,
		Timestamp:    time.Now(),
	}
	if err := o.journal.Record(ctx, event); err != nil {
		log.Printf("Failed to journal event %s for session %s: %v", eventType, token, err)
	}
}
