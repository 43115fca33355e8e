package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eleven-am/glance/internal/shared"
)

const (
	realtimeAPIVersion    = "2025-04-01-preview"
	defaultCommitInterval = 60
	realtimeDialTimeout   = 15 * time.Second
	realtimeWriteTimeout  = 10 * time.Second
	outboundQueueSize     = 256
	eventQueueSize        = 64
)

// RealtimeConfig holds the connection settings for the realtime audio
// backend. Endpoint is the resource base URL; the scheme is rewritten for
// the WebSocket dial.
type RealtimeConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	UseBearer  bool
	// CommitInterval is how many audio appends accumulate before the
	// buffer is committed and a response requested. Zero means the
	// default of 60, which at 250ms chunks is one commit per 15s.
	CommitInterval int
}

// RealtimeClient opens bidirectional audio sessions against the realtime
// endpoint. It implements Provider for the audio capability only.
type RealtimeClient struct {
	cfg    RealtimeConfig
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewRealtimeClient(cfg RealtimeConfig, logger *slog.Logger) *RealtimeClient {
	if cfg.CommitInterval <= 0 {
		cfg.CommitInterval = defaultCommitInterval
	}

	return &RealtimeClient{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: realtimeDialTimeout},
		logger: logger.With("component", "realtime_client"),
	}
}

func (c *RealtimeClient) Name() string { return "realtime" }

// AnalyzeFrame always fails: this client speaks WebSocket audio only.
func (c *RealtimeClient) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (TextStream, error) {
	return nil, &shared.ModelError{Code: "unsupported", Message: "realtime provider does not support frame analysis"}
}

func (c *RealtimeClient) sessionURL() (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", &shared.ConnectionError{Message: "bad endpoint: " + err.Error()}
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https", "":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/openai/realtime"
	q := u.Query()
	q.Set("api-version", realtimeAPIVersion)
	q.Set("deployment", c.cfg.Deployment)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StartAudioSession dials the realtime endpoint, configures the session for
// text-only responses with server turn detection disabled, and starts the
// read and write pumps.
func (c *RealtimeClient) StartAudioSession(ctx context.Context, systemPrompt string) (AudioSession, error) {
	wsURL, err := c.sessionURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.cfg.UseBearer {
		header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	} else {
		header.Set("api-key", c.cfg.APIKey)
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &shared.AuthError{Message: "realtime handshake rejected"}
		case http.StatusTooManyRequests:
			return nil, &shared.RateLimitError{RetryAfter: time.Second}
		default:
			return nil, &shared.ConnectionError{Status: status, Message: err.Error()}
		}
	}

	s := &realtimeSession{
		conn:           conn,
		outbound:       make(chan outboundMessage, outboundQueueSize),
		events:         make(chan Event, eventQueueSize),
		done:           make(chan struct{}),
		commitInterval: c.cfg.CommitInterval,
		logger:         c.logger.With("session_id", uuid.NewString()),
	}

	if err := s.sendSessionUpdate(systemPrompt); err != nil {
		conn.Close()
		return nil, err
	}

	go s.writePump()
	go s.readPump()

	return s, nil
}

type outboundMessage struct {
	payload []byte
	isAudio bool
}

// realtimeSession is one live audio connection. All writes go through the
// write pump so the commit cadence and the close frame are serialized.
type realtimeSession struct {
	conn           *websocket.Conn
	outbound       chan outboundMessage
	events         chan Event
	done           chan struct{}
	commitInterval int
	logger         *slog.Logger
	closeOnce      sync.Once
}

func (s *realtimeSession) sendSessionUpdate(systemPrompt string) error {
	update := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":         []string{"text"},
			"instructions":       systemPrompt,
			"input_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": nil,
		},
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(realtimeWriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &shared.ConnectionError{Message: "session.update failed: " + err.Error()}
	}
	return nil
}

// SendAudio enqueues one PCM16 chunk for the write pump.
func (s *realtimeSession) SendAudio(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	select {
	case <-s.done:
		return &shared.ConnectionError{Message: "audio session closed"}
	default:
	}

	payload, err := json.Marshal(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		return err
	}

	select {
	case s.outbound <- outboundMessage{payload: payload, isAudio: true}:
		return nil
	case <-s.done:
		return &shared.ConnectionError{Message: "audio session closed"}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *realtimeSession) Events() <-chan Event {
	return s.events
}

// Close signals the write pump to send a close frame and tear down.
func (s *realtimeSession) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// writePump drains the outbound queue. With server turn detection off, it
// commits the input buffer and requests a response every commitInterval
// audio appends.
func (s *realtimeSession) writePump() {
	defer s.conn.Close()

	appends := 0
	for {
		select {
		case msg := <-s.outbound:
			s.conn.SetWriteDeadline(time.Now().Add(realtimeWriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
				s.logger.Error("write failed", "error", err)
				return
			}
			if !msg.isAudio {
				continue
			}
			appends++
			if appends >= s.commitInterval {
				appends = 0
				if err := s.commitAndRespond(); err != nil {
					s.logger.Error("commit failed", "error", err)
					return
				}
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(realtimeWriteTimeout))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *realtimeSession) commitAndRespond() error {
	for _, msgType := range []string{"input_audio_buffer.commit", "response.create"} {
		payload, err := json.Marshal(map[string]any{"type": msgType})
		if err != nil {
			return err
		}
		s.conn.SetWriteDeadline(time.Now().Add(realtimeWriteTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	return nil
}

// readPump classifies inbound events and forwards them until the connection
// drops or the session is closed. The events channel is closed on exit.
func (s *realtimeSession) readPump() {
	defer close(s.events)

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Normal shutdown.
			default:
				s.forward(Event{Kind: EventError, Err: &shared.ConnectionError{Message: err.Error()}})
			}
			return
		}

		ev, perr := parseRealtimeEvent(msg)
		if perr != nil {
			s.forward(Event{Kind: EventError, Err: perr})
			if shared.IsInvalidResponse(perr) {
				return
			}
			continue
		}

		switch ev.kind {
		case realtimeDelta:
			if ev.delta != "" {
				s.forward(Event{Kind: EventDelta, Text: ev.delta})
			}
		case realtimeTurnDone:
			s.forward(Event{Kind: EventTurnDone})
		case realtimeSkip:
			s.logger.Debug("skipping event", "type", ev.eventType)
		}
	}
}

func (s *realtimeSession) forward(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
