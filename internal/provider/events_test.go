package provider

import (
	"strings"
	"testing"

	"github.com/eleven-am/glance/internal/shared"
)

func TestParseRealtimeEvent_TextDelta(t *testing.T) {
	ev, err := parseRealtimeEvent([]byte(`{"type":"response.text.delta","delta":"Hello"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.kind != realtimeDelta || ev.delta != "Hello" {
		t.Errorf("expected delta \"Hello\", got %+v", ev)
	}
}

func TestParseRealtimeEvent_AudioTranscriptDelta(t *testing.T) {
	ev, err := parseRealtimeEvent([]byte(`{"type":"response.audio_transcript.delta","delta":"hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.kind != realtimeDelta || ev.delta != "hi" {
		t.Errorf("transcript delta should map to delta, got %+v", ev)
	}
}

func TestParseRealtimeEvent_TurnDone(t *testing.T) {
	for _, raw := range []string{
		`{"type":"response.text.done","text":"Hello world"}`,
		`{"type":"response.done","response":{}}`,
	} {
		ev, err := parseRealtimeEvent([]byte(raw))
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", raw, err)
		}
		if ev.kind != realtimeTurnDone {
			t.Errorf("expected turn-done for %s, got %+v", raw, ev)
		}
	}
}

func TestParseRealtimeEvent_ErrorEvent(t *testing.T) {
	raw := `{"type":"error","error":{"message":"rate limit exceeded","code":"rate_limit"}}`
	_, err := parseRealtimeEvent([]byte(raw))
	if err == nil {
		t.Fatal("expected a model error")
	}
	if !shared.IsModelError(err) {
		t.Fatalf("expected ModelError, got %T", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "rate limit exceeded") || !strings.Contains(msg, "rate_limit") {
		t.Errorf("expected code and message in error, got %q", msg)
	}
}

func TestParseRealtimeEvent_ErrorEventWithoutMessage(t *testing.T) {
	_, err := parseRealtimeEvent([]byte(`{"type":"error","error":{}}`))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "unknown error") {
		t.Errorf("expected fallback message, got %q", err.Error())
	}
}

func TestParseRealtimeEvent_UnknownEventSkipped(t *testing.T) {
	ev, err := parseRealtimeEvent([]byte(`{"type":"session.created","session":{"id":"abc"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.kind != realtimeSkip {
		t.Errorf("expected skip, got %+v", ev)
	}
	if ev.eventType != "session.created" {
		t.Errorf("expected event type preserved for logging, got %q", ev.eventType)
	}
}

func TestParseRealtimeEvent_InvalidJSON(t *testing.T) {
	_, err := parseRealtimeEvent([]byte("not json"))
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if !shared.IsInvalidResponse(err) {
		t.Errorf("expected InvalidResponseError, got %T", err)
	}
	if !strings.Contains(err.Error(), "bad JSON") {
		t.Errorf("expected diagnostic, got %q", err.Error())
	}
}
