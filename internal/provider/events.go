package provider

import (
	"encoding/json"

	"github.com/eleven-am/glance/internal/shared"
)

// realtimeKind classifies one inbound realtime WebSocket event.
type realtimeKind int

const (
	realtimeDelta realtimeKind = iota
	realtimeTurnDone
	realtimeSkip
)

// realtimeEvent is the parsed form of one server message. The transport
// delivers whole messages, so unlike the SSE path there is no buffering.
type realtimeEvent struct {
	kind  realtimeKind
	delta string
	// eventType is kept for debug logging of skipped events.
	eventType string
}

// parseRealtimeEvent classifies one complete JSON event from the realtime
// endpoint. Text deltas and audio transcript deltas both map to delta; a
// backend error event becomes a ModelError; a parse failure is a hard
// InvalidResponseError that terminates the read loop.
func parseRealtimeEvent(msg []byte) (realtimeEvent, error) {
	var payload struct {
		Type  string `json:"type"`
		Delta string `json:"delta"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		return realtimeEvent{}, &shared.InvalidResponseError{
			Message: "bad JSON: " + err.Error(),
		}
	}

	switch payload.Type {
	case "response.text.delta", "response.audio_transcript.delta":
		return realtimeEvent{kind: realtimeDelta, delta: payload.Delta}, nil
	case "response.text.done", "response.done":
		return realtimeEvent{kind: realtimeTurnDone, eventType: payload.Type}, nil
	case "error":
		code := payload.Error.Code
		message := payload.Error.Message
		if message == "" {
			message = "unknown error"
		}
		return realtimeEvent{}, &shared.ModelError{Code: code, Message: message}
	default:
		return realtimeEvent{kind: realtimeSkip, eventType: payload.Type}, nil
	}
}
