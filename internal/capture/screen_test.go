package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/glance/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solidImage(gray uint8, w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = gray
	}
	return img
}

// splitImage is half black, half white: maximally different from any solid.
func splitImage(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.Gray{Y: 0}
			if x >= w/2 {
				c = color.Gray{Y: 255}
			}
			img.SetGray(x, y, c)
		}
	}
	return img
}

// scriptedSource returns its images in order, then repeats the last one.
type scriptedSource struct {
	mu     sync.Mutex
	images []image.Image
	errs   []error
	calls  int
}

func (s *scriptedSource) Capture() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.images) {
		i = len(s.images) - 1
	}
	return s.images[i], nil
}

func (s *scriptedSource) captureCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingFrameHandler struct {
	mu       sync.Mutex
	analyzed []string
	frames   []stream.FramePayload
}

func (h *recordingFrameHandler) AnalyzeFrame(ctx context.Context, frameData string) {
	h.mu.Lock()
	h.analyzed = append(h.analyzed, frameData)
	h.mu.Unlock()
}

func (h *recordingFrameHandler) EmitFrame(p stream.FramePayload) {
	h.mu.Lock()
	h.frames = append(h.frames, p)
	h.mu.Unlock()
}

func (h *recordingFrameHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.analyzed), len(h.frames)
}

func newTestScreenLoop(source ScreenSource, handler FrameHandler) *ScreenLoop {
	return NewScreenLoop(source, handler, nil, ScreenLoopConfig{
		Interval: 5 * time.Millisecond,
	}, testLogger())
}

func TestScreenLoop_EmitsChangedFramesOnly(t *testing.T) {
	// Frame 1 emits (no predecessor), frame 2 is near-identical and is
	// skipped, frame 3 is a big change and emits again.
	source := &scriptedSource{images: []image.Image{
		solidImage(255, 64, 64),
		solidImage(253, 64, 64),
		splitImage(64, 64),
	}}
	handler := &recordingFrameHandler{}
	loop := newTestScreenLoop(source, handler)
	loop.SetRunning(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if source.captureCalls() >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	analyzed, frames := handler.counts()
	if analyzed < 2 {
		t.Fatalf("expected at least frames 1 and 3 analyzed, got %d", analyzed)
	}
	if analyzed != frames {
		t.Errorf("frame events should match analyses: %d vs %d", analyzed, frames)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.frames[0].Width != 64 || handler.frames[0].Height != 64 {
		t.Errorf("unexpected frame dimensions %+v", handler.frames[0])
	}
	if handler.frames[0].Timestamp == "" {
		t.Error("expected frame timestamp")
	}
}

func TestScreenLoop_SkipsWhileStopped(t *testing.T) {
	source := &scriptedSource{images: []image.Image{splitImage(64, 64)}}
	handler := &recordingFrameHandler{}
	loop := newTestScreenLoop(source, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if calls := source.captureCalls(); calls != 0 {
		t.Errorf("stopped loop should not capture, got %d calls", calls)
	}
	if analyzed, _ := handler.counts(); analyzed != 0 {
		t.Errorf("stopped loop should not analyze, got %d", analyzed)
	}
}

func TestScreenLoop_Toggle(t *testing.T) {
	loop := newTestScreenLoop(&scriptedSource{images: []image.Image{solidImage(0, 8, 8)}}, &recordingFrameHandler{})

	if loop.Running() {
		t.Error("loop should start stopped")
	}
	if !loop.Toggle() {
		t.Error("first toggle should enable")
	}
	if loop.Toggle() {
		t.Error("second toggle should disable")
	}
}

func TestScreenLoop_CaptureErrorContinues(t *testing.T) {
	source := &scriptedSource{
		images: []image.Image{nil, splitImage(64, 64)},
		errs:   []error{errors.New("display gone")},
	}
	handler := &recordingFrameHandler{}
	loop := newTestScreenLoop(source, handler)
	loop.SetRunning(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if analyzed, _ := handler.counts(); analyzed >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if analyzed, _ := handler.counts(); analyzed < 1 {
		t.Error("loop should recover after a capture error")
	}
}
