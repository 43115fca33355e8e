package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const sseKeepAliveInterval = 30 * time.Second

// handleSSE streams hub events to one client as server-sent events until
// the client disconnects.
func (h *Handler) handleSSE(c echo.Context) error {
	w := c.Response()
	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(env)
			if err != nil {
				h.logger.Error("event marshal failed", "error", err)
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return nil
			}
			if _, err := w.Write(data); err != nil {
				return nil
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
