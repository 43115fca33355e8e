package stream

import (
	"sync"

	"github.com/eleven-am/glance/internal/provider"
)

// DefaultMaxPairs bounds the rolling conversation window at eight
// user/assistant exchanges.
const DefaultMaxPairs = 8

// ContextWindow holds the recent conversation pairs supplied to the vision
// backend. Entries are always appended as a user/assistant pair, so the
// window length stays even and eviction drops whole exchanges oldest first.
type ContextWindow struct {
	mu       sync.Mutex
	maxPairs int
	entries  []provider.ConversationEntry
}

func NewContextWindow(maxPairs int) *ContextWindow {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	return &ContextWindow{maxPairs: maxPairs}
}

// AppendPair records one exchange and evicts the oldest pairs beyond the
// window size.
func (w *ContextWindow) AppendPair(user, assistant provider.ConversationEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, user, assistant)
	if excess := len(w.entries) - w.maxPairs*2; excess > 0 {
		w.entries = append([]provider.ConversationEntry(nil), w.entries[excess:]...)
	}
}

// Snapshot returns a copy of the current window, oldest first.
func (w *ContextWindow) Snapshot() []provider.ConversationEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]provider.ConversationEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Clear empties the window. Called when the provider is swapped so stale
// conversation state never crosses backends.
func (w *ContextWindow) Clear() {
	w.mu.Lock()
	w.entries = nil
	w.mu.Unlock()
}

// Len reports the current entry count.
func (w *ContextWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
