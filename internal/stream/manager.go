// Package stream orchestrates the two analysis pipelines: concurrent
// streaming frame analyses over HTTP and the single live audio session.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/eleven-am/glance/internal/audio"
	"github.com/eleven-am/glance/internal/provider"
	"github.com/eleven-am/glance/internal/shared"
)

// contextUserPlaceholder stands in for the frame image when an exchange is
// replayed as conversation context.
const contextUserPlaceholder = "[screen frame]"

// TurnRecorder persists completed turns. Persistence is best effort and
// never blocks or fails an analysis.
type TurnRecorder interface {
	Record(ctx context.Context, turnID uint64, source, text string) error
}

// Manager owns provider handles, the rolling conversation window, turn-id
// allocation, and the at-most-one audio session invariant.
type Manager struct {
	logger *slog.Logger
	window *ContextWindow

	providerMu sync.Mutex
	vision     provider.Provider
	audioProv  provider.Provider

	promptMu     sync.Mutex
	visionPrompt string
	audioPrompt  string

	turnMu sync.Mutex
	turnID uint64

	audioMu      sync.Mutex
	audioSession provider.AudioSession

	sink     Sink
	recorder TurnRecorder
}

// Config carries the manager's initial prompts and collaborators. Sink and
// Recorder may be nil.
type Config struct {
	VisionPrompt string
	AudioPrompt  string
	MaxPairs     int
	Sink         Sink
	Recorder     TurnRecorder
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		logger:       logger.With("component", "stream_manager"),
		window:       NewContextWindow(cfg.MaxPairs),
		visionPrompt: cfg.VisionPrompt,
		audioPrompt:  cfg.AudioPrompt,
		sink:         cfg.Sink,
		recorder:     cfg.Recorder,
	}
}

// nextTurnID allocates the next turn identifier. IDs are unique and
// strictly increasing across both pipelines.
func (m *Manager) nextTurnID() uint64 {
	m.turnMu.Lock()
	defer m.turnMu.Unlock()
	m.turnID++
	return m.turnID
}

// ConfigureVision swaps the vision backend. The conversation window and any
// server-side correlation are dropped so state never crosses providers.
func (m *Manager) ConfigureVision(p provider.Provider) {
	m.providerMu.Lock()
	m.vision = p
	m.providerMu.Unlock()

	m.window.Clear()
	if clearer, ok := p.(interface{ ClearContext() }); ok {
		clearer.ClearContext()
	}
	m.logger.Info("vision provider configured", "provider", p.Name())
}

// ConfigureAudio swaps the audio backend. An active session keeps its
// original provider until stopped.
func (m *Manager) ConfigureAudio(p provider.Provider) {
	m.providerMu.Lock()
	m.audioProv = p
	m.providerMu.Unlock()
	m.logger.Info("audio provider configured", "provider", p.Name())
}

func (m *Manager) visionProvider() provider.Provider {
	m.providerMu.Lock()
	defer m.providerMu.Unlock()
	return m.vision
}

func (m *Manager) audioProvider() provider.Provider {
	m.providerMu.Lock()
	defer m.providerMu.Unlock()
	return m.audioProv
}

// UpdatePrompt replaces the system prompt for "vision" or "audio". The new
// prompt applies to analyses and sessions started afterwards.
func (m *Manager) UpdatePrompt(target, prompt string) error {
	m.promptMu.Lock()
	defer m.promptMu.Unlock()

	switch target {
	case "vision":
		m.visionPrompt = prompt
	case "audio":
		m.audioPrompt = prompt
	default:
		return errors.New("unknown prompt target: " + target)
	}
	return nil
}

func (m *Manager) prompts() (vision, audioPrompt string) {
	m.promptMu.Lock()
	defer m.promptMu.Unlock()
	return m.visionPrompt, m.audioPrompt
}

// AnalyzeFrame streams one frame analysis on its own goroutine. Concurrent
// analyses never block each other; each turn's deltas are ordered and
// terminated by exactly one done payload carrying the same id.
func (m *Manager) AnalyzeFrame(ctx context.Context, frameData string) {
	p := m.visionProvider()
	if p == nil {
		m.emitError("no vision provider configured")
		return
	}

	id := m.nextTurnID()
	visionPrompt, _ := m.prompts()
	snapshot := m.window.Snapshot()

	go m.runAnalysis(ctx, p, id, provider.AnalyzeRequest{
		FrameData:    frameData,
		SystemPrompt: visionPrompt,
		Context:      snapshot,
	})
}

func (m *Manager) runAnalysis(ctx context.Context, p provider.Provider, id uint64, req provider.AnalyzeRequest) {
	stream, err := p.AnalyzeFrame(ctx, req)
	if err != nil {
		m.logger.Error("frame analysis failed", "turn_id", id, "error", err)
		m.emitError(err.Error())
		return
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			m.logger.Error("analysis stream broke", "turn_id", id, "error", err)
			m.emitError(err.Error())
			return
		}
		full.WriteString(chunk)
		m.emitSuggestion(SuggestionPayload{
			Text:      chunk,
			Timestamp: shared.Timestamp(),
			ID:        id,
			Source:    string(provider.SourceScreen),
		})
	}

	text := full.String()
	m.emitSuggestion(SuggestionPayload{
		Text:      text,
		Timestamp: shared.Timestamp(),
		Done:      true,
		ID:        id,
		Source:    string(provider.SourceScreen),
	})

	if text == "" {
		return
	}

	now := shared.Timestamp()
	m.window.AppendPair(
		provider.ConversationEntry{
			Role:      provider.RoleUser,
			Content:   contextUserPlaceholder,
			Timestamp: now,
			Source:    provider.SourceScreen,
		},
		provider.ConversationEntry{
			Role:      provider.RoleAssistant,
			Content:   text,
			Timestamp: now,
			Source:    provider.SourceScreen,
		},
	)
	m.record(id, string(provider.SourceScreen), text)
}

// StartAudioSession opens the single live audio session. Starting while one
// is active is a conflict.
func (m *Manager) StartAudioSession(ctx context.Context) error {
	p := m.audioProvider()
	if p == nil {
		return errors.New("no audio provider configured")
	}

	m.audioMu.Lock()
	if m.audioSession != nil {
		m.audioMu.Unlock()
		return errors.New("audio session already active")
	}
	m.audioMu.Unlock()

	m.emitAudioStatus(AudioStatusPayload{Status: AudioStatusConnecting})

	_, audioPrompt := m.prompts()
	session, err := p.StartAudioSession(ctx, audioPrompt)
	if err != nil {
		m.emitAudioStatus(AudioStatusPayload{Status: AudioStatusError, Message: err.Error()})
		return err
	}

	m.audioMu.Lock()
	if m.audioSession != nil {
		m.audioMu.Unlock()
		session.Close(ctx)
		return errors.New("audio session already active")
	}
	m.audioSession = session
	m.audioMu.Unlock()

	m.emitAudioStatus(AudioStatusPayload{Status: AudioStatusConnected})
	go m.readAudioEvents(session)
	return nil
}

// readAudioEvents forwards session events until the channel closes. Each
// response turn gets its own id; a turn boundary emits the terminal payload
// and rolls the id forward.
func (m *Manager) readAudioEvents(session provider.AudioSession) {
	id := m.nextTurnID()
	var full strings.Builder

	for ev := range session.Events() {
		switch ev.Kind {
		case provider.EventDelta:
			full.WriteString(ev.Text)
			m.emitSuggestion(SuggestionPayload{
				Text:      ev.Text,
				Timestamp: shared.Timestamp(),
				ID:        id,
				Source:    string(provider.SourceAudio),
			})

		case provider.EventTurnDone:
			text := full.String()
			m.emitSuggestion(SuggestionPayload{
				Text:      text,
				Timestamp: shared.Timestamp(),
				Done:      true,
				ID:        id,
				Source:    string(provider.SourceAudio),
			})
			if text != "" {
				m.record(id, string(provider.SourceAudio), text)
			}
			full.Reset()
			id = m.nextTurnID()

		case provider.EventError:
			m.logger.Error("audio session failed", "turn_id", id, "error", ev.Err)
			m.emitError(ev.Err.Error())
			m.emitAudioStatus(AudioStatusPayload{Status: AudioStatusError, Message: ev.Err.Error()})
			m.discardAudioSession(session)
			return
		}
	}
}

// StopAudioSession closes the active session, if any.
func (m *Manager) StopAudioSession(ctx context.Context) error {
	m.audioMu.Lock()
	session := m.audioSession
	m.audioSession = nil
	m.audioMu.Unlock()

	if session == nil {
		return nil
	}
	err := session.Close(ctx)
	m.emitAudioStatus(AudioStatusPayload{Status: AudioStatusDisconnected})
	return err
}

// AudioSessionActive reports whether a session is currently live.
func (m *Manager) AudioSessionActive() bool {
	m.audioMu.Lock()
	defer m.audioMu.Unlock()
	return m.audioSession != nil
}

// ProcessAudioChunk forwards one processed chunk to the live session. The
// lock is held only for the send.
func (m *Manager) ProcessAudioChunk(ctx context.Context, chunk audio.Chunk) error {
	m.audioMu.Lock()
	session := m.audioSession
	m.audioMu.Unlock()

	if session == nil {
		return nil
	}
	return session.SendAudio(ctx, chunk.PCM)
}

func (m *Manager) discardAudioSession(session provider.AudioSession) {
	m.audioMu.Lock()
	if m.audioSession == session {
		m.audioSession = nil
	}
	m.audioMu.Unlock()
	session.Close(context.Background())
}

// Window exposes the conversation window for inspection endpoints.
func (m *Manager) Window() *ContextWindow {
	return m.window
}

func (m *Manager) record(turnID uint64, source, text string) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(context.Background(), turnID, source, text); err != nil {
		m.logger.Warn("turn persistence failed", "turn_id", turnID, "error", err)
	}
}

func (m *Manager) emitSuggestion(p SuggestionPayload) {
	if m.sink != nil {
		m.sink.Suggestion(p)
	}
}

func (m *Manager) emitError(message string) {
	if m.sink != nil {
		m.sink.PipelineError(ErrorPayload{Message: message, Timestamp: shared.Timestamp()})
	}
}

func (m *Manager) emitAudioStatus(p AudioStatusPayload) {
	if m.sink != nil {
		m.sink.AudioStatus(p)
	}
}

// EmitFrame publishes an emitted capture frame to observers.
func (m *Manager) EmitFrame(p FramePayload) {
	if m.sink != nil {
		m.sink.Frame(p)
	}
}

// EmitAudioLevel publishes the level of one processed chunk.
func (m *Manager) EmitAudioLevel(p AudioLevelPayload) {
	if m.sink != nil {
		m.sink.AudioLevel(p)
	}
}
