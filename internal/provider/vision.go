package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/glance/internal/shared"
)

const (
	defaultVisionTimeout   = 120 * time.Second
	defaultMaxOutputTokens = 300
	visionUserPrompt       = "What do you see?"
)

// VisionConfig holds the connection settings for the streaming vision
// backend. Endpoint is the resource base URL without a trailing slash.
type VisionConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	// UseBearer switches from the api-key header to an Authorization
	// bearer token.
	UseBearer bool
	Timeout   time.Duration
}

// VisionClient streams frame analyses from the hosted responses endpoint.
// It implements Provider for the vision capability only.
type VisionClient struct {
	httpClient *http.Client
	cfg        VisionConfig
	logger     *slog.Logger

	mu sync.Mutex
	// previousResponseID correlates consecutive analyses server-side. It
	// is cleared when the backend no longer recognizes it.
	previousResponseID string
}

func NewVisionClient(cfg VisionConfig, logger *slog.Logger) *VisionClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultVisionTimeout
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &VisionClient{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		logger:     logger.With("component", "vision_client"),
	}
}

func (c *VisionClient) Name() string { return "vision" }

// StartAudioSession always fails: this client speaks HTTP only.
func (c *VisionClient) StartAudioSession(ctx context.Context, systemPrompt string) (AudioSession, error) {
	return nil, &shared.ModelError{Code: "unsupported", Message: "vision provider does not support audio sessions"}
}

type responsesContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type responsesMessage struct {
	Role    string             `json:"role"`
	Content []responsesContent `json:"content"`
}

type responsesRequest struct {
	Model              string             `json:"model"`
	Input              []responsesMessage `json:"input"`
	Instructions       string             `json:"instructions,omitempty"`
	Stream             bool               `json:"stream"`
	MaxOutputTokens    int                `json:"max_output_tokens"`
	Truncation         string             `json:"truncation"`
	PreviousResponseID string             `json:"previous_response_id,omitempty"`
}

// AnalyzeFrame posts one frame and returns a stream of response text. When
// the backend rejects a stale previous_response_id, the correlation is
// dropped and the request retried exactly once.
func (c *VisionClient) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (TextStream, error) {
	if req.FrameData == "" {
		return nil, &shared.InvalidResponseError{Message: "empty frame data"}
	}

	c.mu.Lock()
	prevID := c.previousResponseID
	c.mu.Unlock()

	resp, err := c.post(ctx, req, prevID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusBadRequest && prevID != "" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		resp.Body.Close()
		if strings.Contains(string(body), "previous_response_not_found") {
			c.logger.Warn("stale response correlation, retrying without it", "previous_response_id", prevID)
			c.clearPreviousResponseID()
			resp, err = c.post(ctx, req, "")
			if err != nil {
				return nil, err
			}
		} else {
			return nil, &shared.ConnectionError{Status: http.StatusBadRequest, Message: string(body)}
		}
	}

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	return &visionStream{body: resp.Body, client: c}, nil
}

func (c *VisionClient) post(ctx context.Context, req AnalyzeRequest, prevID string) (*http.Response, error) {
	input := make([]responsesMessage, 0, len(req.Context)+1)
	for _, entry := range req.Context {
		input = append(input, responsesMessage{
			Role: string(entry.Role),
			Content: []responsesContent{
				{Type: contentTypeForRole(entry.Role), Text: entry.Content},
			},
		})
	}
	input = append(input, responsesMessage{
		Role: string(RoleUser),
		Content: []responsesContent{
			{Type: "input_text", Text: visionUserPrompt},
			{Type: "input_image", ImageURL: "data:image/jpeg;base64," + req.FrameData},
		},
	})

	body, err := json.Marshal(responsesRequest{
		Model:              c.cfg.Model,
		Input:              input,
		Instructions:       req.SystemPrompt,
		Stream:             true,
		MaxOutputTokens:    defaultMaxOutputTokens,
		Truncation:         "auto",
		PreviousResponseID: prevID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.cfg.Endpoint + "/openai/v1/responses?api-version=preview"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.UseBearer {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	} else {
		httpReq.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &shared.ConnectionError{Message: err.Error()}
	}
	return resp, nil
}

func (c *VisionClient) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &shared.AuthError{Message: fmt.Sprintf("authentication failed (status %d)", resp.StatusCode)}
	case http.StatusTooManyRequests:
		retryAfter := time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &shared.RateLimitError{RetryAfter: retryAfter}
	default:
		return &shared.ConnectionError{Status: resp.StatusCode, Message: string(body)}
	}
}

func (c *VisionClient) setPreviousResponseID(id string) {
	c.mu.Lock()
	c.previousResponseID = id
	c.mu.Unlock()
}

func (c *VisionClient) clearPreviousResponseID() {
	c.setPreviousResponseID("")
}

// ClearContext drops the server-side response correlation. The orchestrator
// calls this when the provider is reconfigured.
func (c *VisionClient) ClearContext() {
	c.clearPreviousResponseID()
}

func contentTypeForRole(role Role) string {
	if role == RoleAssistant {
		return "output_text"
	}
	return "input_text"
}

// visionStream adapts the SSE body into the TextStream interface, feeding
// the incremental parser from fixed-size reads.
type visionStream struct {
	body   io.ReadCloser
	client *VisionClient
	parser SSEParser
	buf    [4096]byte
	done   bool
}

func (s *visionStream) Recv(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		ev, ok, err := s.parser.Next()
		if err != nil {
			return "", err
		}
		if ok {
			if text, finished := s.handle(ev); finished {
				s.done = true
				return "", io.EOF
			} else if text != "" {
				return text, nil
			}
			continue
		}

		n, err := s.body.Read(s.buf[:])
		if n > 0 {
			s.parser.Feed(s.buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				if ev, ok, perr := s.parser.Flush(); perr == nil && ok {
					if text, finished := s.handle(ev); !finished && text != "" {
						s.done = true
						return text, nil
					}
				}
				s.done = true
				return "", io.EOF
			}
			return "", &shared.ConnectionError{Message: err.Error()}
		}
	}
}

// handle applies one parsed event. finished is true at stream end.
func (s *visionStream) handle(ev SSEEvent) (text string, finished bool) {
	switch ev.Type {
	case SSEDelta:
		return ev.Delta, false
	case SSEResponseID:
		s.client.setPreviousResponseID(ev.ResponseID)
		return "", false
	case SSEDone:
		return "", true
	}
	return "", false
}

func (s *visionStream) Close() error {
	return s.body.Close()
}
