package provider

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/eleven-am/glance/internal/shared"
)

// SSEEventType classifies one parsed server-sent event.
type SSEEventType int

const (
	// SSEDelta carries incremental response text.
	SSEDelta SSEEventType = iota
	// SSEResponseID carries the backend's response identifier, used to
	// correlate the next request with this turn.
	SSEResponseID
	// SSEDone marks the end of the stream.
	SSEDone
)

// SSEEvent is one classified unit from a text/event-stream body.
type SSEEvent struct {
	Type       SSEEventType
	Delta      string
	ResponseID string
}

// SSEParser incrementally decodes a text/event-stream body fed to it in
// arbitrary network-sized pieces. It buffers until a complete line is
// available and never blocks the caller waiting for the rest of a response.
type SSEParser struct {
	buf []byte
}

// Feed appends raw bytes from the transport.
func (p *SSEParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Next extracts the next classifiable event from the buffer. ok is false
// when more data is needed. Skippable lines (blank, comments, non-data
// fields, unrecognized event types) are consumed silently.
func (p *SSEParser) Next() (ev SSEEvent, ok bool, err error) {
	for {
		nl := bytes.IndexByte(p.buf, '\n')
		if nl < 0 {
			return SSEEvent{}, false, nil
		}

		line := strings.TrimSuffix(string(p.buf[:nl]), "\r")
		p.buf = p.buf[nl+1:]

		if line == "" {
			continue
		}

		data, isData := strings.CutPrefix(line, "data:")
		if !isData {
			// Comments, event:, id:, retry: fields.
			continue
		}

		ev, matched, err := classifySSEData(strings.TrimSpace(data))
		if err != nil {
			return SSEEvent{}, false, err
		}
		if matched {
			return ev, true, nil
		}
	}
}

// Flush parses any non-empty trailing buffer content as a final best-effort
// event, for transports that close without a terminal marker.
func (p *SSEParser) Flush() (ev SSEEvent, ok bool, err error) {
	remaining := strings.TrimSpace(string(p.buf))
	p.buf = nil
	if remaining == "" {
		return SSEEvent{}, false, nil
	}

	data, isData := strings.CutPrefix(remaining, "data:")
	if !isData {
		return SSEEvent{}, false, nil
	}
	return classifySSEData(strings.TrimSpace(data))
}

// classifySSEData maps one data: payload to an event. matched is false for
// event types the stream should skip.
func classifySSEData(data string) (ev SSEEvent, matched bool, err error) {
	if data == "[DONE]" {
		return SSEEvent{Type: SSEDone}, true, nil
	}

	var payload struct {
		Type     string `json:"type"`
		Delta    string `json:"delta"`
		Response struct {
			ID string `json:"id"`
		} `json:"response"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return SSEEvent{}, false, &shared.InvalidResponseError{
			Message: "invalid JSON in SSE: " + err.Error(),
		}
	}

	switch payload.Type {
	case "response.output_text.delta":
		if payload.Delta == "" {
			return SSEEvent{}, false, nil
		}
		return SSEEvent{Type: SSEDelta, Delta: payload.Delta}, true, nil
	case "response.created":
		if payload.Response.ID == "" {
			return SSEEvent{}, false, nil
		}
		return SSEEvent{Type: SSEResponseID, ResponseID: payload.Response.ID}, true, nil
	case "response.output_text.done", "response.completed":
		return SSEEvent{Type: SSEDone}, true, nil
	default:
		return SSEEvent{}, false, nil
	}
}
