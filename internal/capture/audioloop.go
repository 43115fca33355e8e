package capture

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/glance/internal/audio"
	"github.com/eleven-am/glance/internal/stream"
)

// AudioDevice abstracts the platform microphone. Start begins push-style
// delivery of raw interleaved float32 samples and returns a handle that
// stops the device when closed.
type AudioDevice interface {
	SampleRate() int
	Channels() int
	Start(onSamples func([]float32)) (io.Closer, error)
}

// ChunkHandler consumes processed audio chunks. Satisfied by stream.Manager.
type ChunkHandler interface {
	ProcessAudioChunk(ctx context.Context, chunk audio.Chunk) error
	EmitAudioLevel(p stream.AudioLevelPayload)
}

// AudioLoop accumulates device samples in a shared buffer and drains it on
// a fixed cadence, one processed chunk per drain.
type AudioLoop struct {
	device  AudioDevice
	handler ChunkHandler
	chunker *audio.Chunker
	logger  *slog.Logger

	mu     sync.Mutex
	buffer []float32
}

func NewAudioLoop(device AudioDevice, handler ChunkHandler, chunker *audio.Chunker, logger *slog.Logger) *AudioLoop {
	return &AudioLoop{
		device:  device,
		handler: handler,
		chunker: chunker,
		logger:  logger.With("component", "audio_loop"),
	}
}

// Run starts the device and drains the buffer every chunk interval until
// ctx is cancelled. The device is stopped on exit.
func (l *AudioLoop) Run(ctx context.Context) error {
	closer, err := l.device.Start(l.append)
	if err != nil {
		return err
	}
	defer closer.Close()

	interval := time.Duration(l.chunker.ChunkMS()) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain(context.Background())
			return nil
		case <-ticker.C:
			l.drain(ctx)
		}
	}
}

func (l *AudioLoop) append(samples []float32) {
	l.mu.Lock()
	l.buffer = append(l.buffer, samples...)
	l.mu.Unlock()
}

// drain processes and forwards whatever accumulated since the last tick.
// Empty drains are skipped.
func (l *AudioLoop) drain(ctx context.Context) {
	l.mu.Lock()
	raw := l.buffer
	l.buffer = nil
	l.mu.Unlock()

	if len(raw) == 0 {
		return
	}

	chunk := l.chunker.Process(raw, l.device.Channels(), l.device.SampleRate())

	l.handler.EmitAudioLevel(stream.AudioLevelPayload{
		Level:     chunk.Level,
		Timestamp: chunk.Timestamp,
	})
	if err := l.handler.ProcessAudioChunk(ctx, chunk); err != nil {
		l.logger.Warn("chunk forwarding failed", "error", err)
	}
}
