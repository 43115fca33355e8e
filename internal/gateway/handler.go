package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/glance/internal/capture"
	"github.com/eleven-am/glance/internal/frame"
	"github.com/eleven-am/glance/internal/history"
	"github.com/eleven-am/glance/internal/provider"
	"github.com/eleven-am/glance/internal/shared"
	"github.com/eleven-am/glance/internal/stream"
)

// ProviderSettings is the request body for configuring an AI backend.
type ProviderSettings struct {
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	Deployment string `json:"deployment"`
	UseBearer  bool   `json:"use_bearer"`
}

// ProviderFactory builds a provider from client-supplied settings. Injected
// so tests can substitute fakes.
type ProviderFactory func(ProviderSettings) provider.Provider

// Handler serves the control API and the event feeds.
type Handler struct {
	hub        *Hub
	manager    *stream.Manager
	screenLoop *capture.ScreenLoop
	frames     *frame.Store
	turns      *history.Store
	logger     *slog.Logger

	visionFactory ProviderFactory
	audioFactory  ProviderFactory
}

// HandlerConfig carries the handler's collaborators. The frame and history
// stores may be nil, in which case the matching endpoints report 404.
type HandlerConfig struct {
	Hub           *Hub
	Manager       *stream.Manager
	ScreenLoop    *capture.ScreenLoop
	Frames        *frame.Store
	Turns         *history.Store
	VisionFactory ProviderFactory
	AudioFactory  ProviderFactory
}

func NewHandler(cfg HandlerConfig, logger *slog.Logger) *Handler {
	return &Handler{
		hub:           cfg.Hub,
		manager:       cfg.Manager,
		screenLoop:    cfg.ScreenLoop,
		frames:        cfg.Frames,
		turns:         cfg.Turns,
		visionFactory: cfg.VisionFactory,
		audioFactory:  cfg.AudioFactory,
		logger:        logger.With("component", "gateway_handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")

	api.GET("/events", h.handleSSE)
	api.GET("/ws", h.handleWS)
	api.GET("/status", h.handleStatus)

	api.POST("/capture/screen/toggle", h.handleToggleScreen)
	api.GET("/frames/recent", h.handleRecentFrames)

	api.POST("/providers/vision", h.handleConfigureVision)
	api.POST("/providers/audio", h.handleConfigureAudio)
	api.PUT("/prompts/:target", h.handleUpdatePrompt)

	api.POST("/audio/session/start", h.handleStartAudio)
	api.POST("/audio/session/stop", h.handleStopAudio)

	api.GET("/history", h.handleHistory)
}

func (h *Handler) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"screen_capturing":     h.screenLoop.Running(),
		"audio_session_active": h.manager.AudioSessionActive(),
		"subscribers":          h.hub.SubscriberCount(),
	})
}

func (h *Handler) handleToggleScreen(c echo.Context) error {
	running := h.screenLoop.Toggle()
	h.logger.Info("screen capture toggled", "running", running)
	return c.JSON(http.StatusOK, map[string]bool{"running": running})
}

func (h *Handler) handleConfigureVision(c echo.Context) error {
	settings, err := bindProviderSettings(c)
	if err != nil {
		return err
	}
	h.manager.ConfigureVision(h.visionFactory(settings))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleConfigureAudio(c echo.Context) error {
	settings, err := bindProviderSettings(c)
	if err != nil {
		return err
	}
	h.manager.ConfigureAudio(h.audioFactory(settings))
	return c.NoContent(http.StatusNoContent)
}

func bindProviderSettings(c echo.Context) (ProviderSettings, error) {
	var settings ProviderSettings
	if err := c.Bind(&settings); err != nil {
		return settings, shared.BadRequest("invalid_body", "malformed provider settings")
	}
	if settings.Endpoint == "" || settings.APIKey == "" {
		return settings, shared.BadRequest("missing_fields", "endpoint and api_key are required")
	}
	return settings, nil
}

func (h *Handler) handleUpdatePrompt(c echo.Context) error {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := c.Bind(&body); err != nil {
		return shared.BadRequest("invalid_body", "malformed prompt body")
	}

	if err := h.manager.UpdatePrompt(c.Param("target"), body.Prompt); err != nil {
		return shared.BadRequest("unknown_target", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleStartAudio(c echo.Context) error {
	if err := h.manager.StartAudioSession(c.Request().Context()); err != nil {
		if h.manager.AudioSessionActive() {
			return shared.Conflict("session_active", err.Error())
		}
		return shared.InternalError("session_start_failed", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleStopAudio(c echo.Context) error {
	if err := h.manager.StopAudioSession(context.Background()); err != nil {
		h.logger.Warn("audio session close reported an error", "error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleRecentFrames(c echo.Context) error {
	if h.frames == nil {
		return shared.NotFound("frames_unavailable", "frame store not configured")
	}

	limit := intQuery(c, "limit", 10)
	frames, err := h.frames.Recent(c.Request().Context(), "screen", limit)
	if err != nil {
		return shared.InternalError("frame_read_failed", err.Error())
	}
	return c.JSON(http.StatusOK, frames)
}

func (h *Handler) handleHistory(c echo.Context) error {
	if h.turns == nil {
		return shared.NotFound("history_unavailable", "history store not configured")
	}

	limit := intQuery(c, "limit", 50)
	turns, err := h.turns.Recent(c.Request().Context(), c.QueryParam("source"), limit)
	if err != nil {
		return shared.InternalError("history_read_failed", err.Error())
	}
	return c.JSON(http.StatusOK, turns)
}

func intQuery(c echo.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
