// Package capture runs the periodic screen and audio capture loops and
// feeds their output into the stream orchestrator.
package capture

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eleven-am/glance/internal/frame"
	"github.com/eleven-am/glance/internal/shared"
	"github.com/eleven-am/glance/internal/stream"
)

// DefaultCaptureInterval is how often the screen is sampled.
const DefaultCaptureInterval = 2 * time.Second

// ScreenSource produces one screenshot per call. The platform-specific
// grabber lives behind this interface.
type ScreenSource interface {
	Capture() (image.Image, error)
}

// FrameHandler consumes emitted frames. Satisfied by stream.Manager.
type FrameHandler interface {
	AnalyzeFrame(ctx context.Context, frameData string)
	EmitFrame(p stream.FramePayload)
}

// ScreenLoopConfig carries the loop's tunables. Zero values fall back to
// the package defaults.
type ScreenLoopConfig struct {
	CaptureID     string
	Interval      time.Duration
	MaxWidth      int
	JPEGQuality   int
	DiffThreshold int
}

// ScreenLoop samples the screen on a ticker, gates frames through the
// differencer, and hands changed frames to the orchestrator. The loop
// goroutine runs for the process lifetime; Toggle controls whether
// iterations do any work.
type ScreenLoop struct {
	source  ScreenSource
	handler FrameHandler
	store   *frame.Store
	differ  *frame.Differ
	cfg     ScreenLoopConfig
	logger  *slog.Logger
	running atomic.Bool
}

func NewScreenLoop(source ScreenSource, handler FrameHandler, store *frame.Store, cfg ScreenLoopConfig, logger *slog.Logger) *ScreenLoop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCaptureInterval
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = frame.DefaultMaxWidth
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = frame.DefaultJPEGQuality
	}
	if cfg.DiffThreshold <= 0 {
		cfg.DiffThreshold = frame.DefaultDiffThreshold
	}
	if cfg.CaptureID == "" {
		cfg.CaptureID = "screen"
	}

	return &ScreenLoop{
		source:  source,
		handler: handler,
		store:   store,
		differ:  frame.NewDiffer(cfg.DiffThreshold),
		cfg:     cfg,
		logger:  logger.With("component", "screen_loop"),
	}
}

// Toggle flips the capture state and returns the new value.
func (l *ScreenLoop) Toggle() bool {
	for {
		old := l.running.Load()
		if l.running.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Running reports whether capture is currently enabled.
func (l *ScreenLoop) Running() bool {
	return l.running.Load()
}

// SetRunning forces the capture state.
func (l *ScreenLoop) SetRunning(on bool) {
	l.running.Store(on)
}

// Run drives the loop until ctx is cancelled.
func (l *ScreenLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !l.running.Load() {
				continue
			}
			l.iterate(ctx)
		}
	}
}

// iterate runs one capture cycle. Errors are logged and skipped; the
// differencer state is only advanced on a successful capture.
func (l *ScreenLoop) iterate(ctx context.Context) {
	img, err := l.source.Capture()
	if err != nil {
		l.logger.Error("screen capture failed", "error", err)
		return
	}

	diff := l.differ.Evaluate(frame.AverageHash(img))
	if !diff.Emit {
		l.logger.Debug("frame unchanged, skipping", "distance", diff.Distance)
		return
	}

	data, width, height, err := frame.Encode(img, l.cfg.MaxWidth, l.cfg.JPEGQuality)
	if err != nil {
		l.logger.Error("frame encoding failed", "error", err)
		return
	}

	enc := frame.Encoded{
		Data:      data,
		Width:     width,
		Height:    height,
		DiffPct:   diff.Percent,
		Timestamp: shared.Timestamp(),
	}

	l.handler.AnalyzeFrame(ctx, enc.Data)
	l.handler.EmitFrame(stream.FramePayload{
		Data:      enc.Data,
		Width:     enc.Width,
		Height:    enc.Height,
		DiffPct:   enc.DiffPct,
		Timestamp: enc.Timestamp,
	})

	if l.store != nil {
		if err := l.store.Put(ctx, l.cfg.CaptureID, enc); err != nil {
			l.logger.Warn("frame store write failed", "error", err)
		}
	}
}
