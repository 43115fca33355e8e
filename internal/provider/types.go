// Package provider abstracts the hosted AI backends behind a two-operation
// capability: streaming vision analysis over HTTP and bidirectional audio
// over WebSocket. Each concrete client supports exactly one of the two and
// rejects the other.
package provider

import "context"

// Role identifies who produced a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Source identifies which capture pipeline produced a turn.
type Source string

const (
	SourceScreen Source = "screen"
	SourceAudio  Source = "audio"
)

// ConversationEntry is one prior exchange supplied to the vision backend for
// continuity across frames.
type ConversationEntry struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Source    Source `json:"source"`
}

// AnalyzeRequest carries one encoded frame and its conversational grounding.
type AnalyzeRequest struct {
	// FrameData is a base64-encoded JPEG.
	FrameData    string
	SystemPrompt string
	Context      []ConversationEntry
}

// TextStream yields the chunks of one streaming response in arrival order.
// Recv returns io.EOF once the stream has completed normally.
type TextStream interface {
	Recv(ctx context.Context) (string, error)
	Close() error
}

// EventKind classifies what an audio session event means to the caller.
type EventKind int

const (
	// EventDelta carries incremental response text.
	EventDelta EventKind = iota
	// EventTurnDone marks the end of one response turn.
	EventTurnDone
	// EventError carries a terminal session error.
	EventError
)

// Event is one parsed occurrence on an audio session.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// AudioSession is a live bidirectional audio connection. SendAudio accepts
// raw PCM16 mono bytes; Events delivers parsed deltas and turn boundaries
// until the session ends, after which the channel is closed.
type AudioSession interface {
	SendAudio(ctx context.Context, pcm []byte) error
	Events() <-chan Event
	Close(ctx context.Context) error
}

// Provider is the capability the orchestrator depends on. A vision client
// implements AnalyzeFrame and rejects StartAudioSession; an audio client is
// the mirror image.
type Provider interface {
	AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (TextStream, error)
	StartAudioSession(ctx context.Context, systemPrompt string) (AudioSession, error)
	Name() string
}
