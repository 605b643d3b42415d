package hub

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"snapbooth/pkg/interfaces"
	"snapbooth/pkg/types"
)

// Hub maps session tokens to sets of live push channels and fans published
// notifications out to them. Delivery is best-effort and at-most-once: a
// channel that fails to send is pruned during that publish pass, and a token
// with zero subscribers is a silent no-op. The hub holds no session state;
// status queries remain the source of truth.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[interfaces.PushChannel]struct{}
}

// NewHub creates a hub with no subscriptions.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[interfaces.PushChannel]struct{}),
	}
}

// Subscribe registers a channel under the token's subscriber set. The caller
// owns the channel lifecycle and must call Unsubscribe when it closes or
// errors; both paths are safe to trigger more than once.
func (h *Hub) Subscribe(token string, ch interfaces.PushChannel) error {
	if ch == nil {
		return ErrNilChannel
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[token] == nil {
		h.subscribers[token] = make(map[interfaces.PushChannel]struct{})
	}
	h.subscribers[token][ch] = struct{}{}

	log.Printf("Client subscribed to session %s (total subscribers: %d)", token, len(h.subscribers[token]))
	return nil
}

// Unsubscribe removes a channel from the token's set, deleting the set when
// it becomes empty. Idempotent: unknown tokens and channels are no-ops, so
// close and error teardown paths may both call it.
func (h *Hub) Unsubscribe(token string, ch interfaces.PushChannel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channels, ok := h.subscribers[token]
	if !ok {
		return
	}
	if _, ok := channels[ch]; !ok {
		return
	}

	delete(channels, ch)
	if len(channels) == 0 {
		delete(h.subscribers, token)
	}
}

// Publish delivers the notification to every channel currently subscribed to
// the token. Channels whose send fails are treated as closed and pruned in
// this pass rather than left to accumulate. Zero subscribers is success.
func (h *Hub) Publish(token string, notification *types.Notification) int {
	if !types.IsValidNotificationType(notification.Type) {
		log.Printf("Dropping notification with unknown type %q for session %s", notification.Type, token)
		return 0
	}

	data, err := json.Marshal(notification)
	if err != nil {
		log.Printf("Failed to marshal notification for session %s: %v", token, err)
		return 0
	}

	h.mu.RLock()
	channels := make([]interfaces.PushChannel, 0, len(h.subscribers[token]))
	for ch := range h.subscribers[token] {
		channels = append(channels, ch)
	}
	h.mu.RUnlock()

	if len(channels) == 0 {
		return 0
	}

	sent := 0
	var dead []interfaces.PushChannel
	for _, ch := range channels {
		if err := ch.Send(data); err != nil {
			// A closed channel is expected here, not exceptional.
			dead = append(dead, ch)
			continue
		}
		sent++
	}

	for _, ch := range dead {
		h.Unsubscribe(token, ch)
		_ = ch.Close()
	}

	log.Printf("Published %s to %d client(s) for session %s", notification.Type, sent, token)
	return sent
}

// SubscriberCount returns the number of live channels for a token, zero if
// none.
func (h *Hub) SubscriberCount(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[token])
}

// Stats returns hub statistics for monitoring.
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, channels := range h.subscribers {
		total += len(channels)
	}
	return map[string]int{
		"total_subscribers":   total,
		"subscribed_sessions": len(h.subscribers),
	}
}

// ImageReady publishes an image_ready notification for the session.
func (h *Hub) ImageReady(token, imageURL string) {
	h.Publish(token, &types.Notification{
		Type:      types.NotificationImageReady,
		SessionID: token,
		Status:    types.StatusImageReady,
		ImageURL:  imageURL,
		Message:   "Image uploaded and ready for editing",
	})
}

// StatusUpdate publishes a status_update notification for the session. An
// empty message gets a generic human-readable default.
func (h *Hub) StatusUpdate(token string, status types.Status, message string) {
	if message == "" {
		message = fmt.Sprintf("Status updated to: %s", status)
	}
	h.Publish(token, &types.Notification{
		Type:      types.NotificationStatusUpdate,
		SessionID: token,
		Status:    status,
		Message:   message,
	})
}
