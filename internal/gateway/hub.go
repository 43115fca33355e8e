// Package gateway exposes the pipeline over HTTP: an event feed for
// connected clients (SSE and WebSocket) and the control API.
package gateway

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/glance/internal/stream"
)

const subscriberBuffer = 128

// Envelope is one outbound event: a type tag plus its payload.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventSuggestion  = "suggestion"
	EventError       = "error"
	EventAudioStatus = "audio_status"
	EventFrame       = "frame"
	EventAudioLevel  = "audio_level"
)

// Hub fans pipeline events out to every subscribed client. Delivery is best
// effort: a subscriber that cannot keep up has events dropped rather than
// stalling the pipeline.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[uint64]chan Envelope
	next uint64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "gateway_hub"),
		subs:   make(map[uint64]chan Envelope),
	}
}

// Subscribe registers a new client. The returned cancel func must be called
// when the client disconnects.
func (h *Hub) Subscribe() (<-chan Envelope, func()) {
	ch := make(chan Envelope, subscriberBuffer)

	h.mu.Lock()
	h.next++
	id := h.next
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount reports the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) broadcast(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- env:
		default:
			h.logger.Warn("subscriber buffer full, dropping event", "subscriber", id, "type", env.Type)
		}
	}
}

func (h *Hub) Suggestion(p stream.SuggestionPayload) {
	h.broadcast(Envelope{Type: EventSuggestion, Payload: p})
}

func (h *Hub) PipelineError(p stream.ErrorPayload) {
	h.broadcast(Envelope{Type: EventError, Payload: p})
}

func (h *Hub) AudioStatus(p stream.AudioStatusPayload) {
	h.broadcast(Envelope{Type: EventAudioStatus, Payload: p})
}

func (h *Hub) Frame(p stream.FramePayload) {
	h.broadcast(Envelope{Type: EventFrame, Payload: p})
}

func (h *Hub) AudioLevel(p stream.AudioLevelPayload) {
	h.broadcast(Envelope{Type: EventAudioLevel, Payload: p})
}
