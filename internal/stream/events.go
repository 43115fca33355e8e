package stream

// SuggestionPayload is one streamed piece of model output. Deltas for a
// turn share an ID and arrive in order; the final payload for a turn has
// Done set and carries the assembled text.
type SuggestionPayload struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Done      bool   `json:"done"`
	ID        uint64 `json:"id"`
	Source    string `json:"source"`
}

// ErrorPayload is a user-visible pipeline failure.
type ErrorPayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// AudioStatusPayload tracks the audio session lifecycle. Status is one of
// connecting, connected, disconnected, or error.
type AudioStatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// FramePayload is an emitted capture frame for observers.
type FramePayload struct {
	Data      string  `json:"data"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	DiffPct   float64 `json:"diff_pct"`
	Timestamp string  `json:"timestamp"`
}

// AudioLevelPayload is the RMS level of one processed audio chunk.
type AudioLevelPayload struct {
	Level     float32 `json:"level"`
	Timestamp string  `json:"timestamp"`
}

// Sink receives pipeline events for delivery to connected clients. Delivery
// is best effort; implementations must not block the pipeline.
type Sink interface {
	Suggestion(p SuggestionPayload)
	PipelineError(p ErrorPayload)
	AudioStatus(p AudioStatusPayload)
	Frame(p FramePayload)
	AudioLevel(p AudioLevelPayload)
}

const (
	AudioStatusConnecting   = "connecting"
	AudioStatusConnected    = "connected"
	AudioStatusDisconnected = "disconnected"
	AudioStatusError        = "error"
)
