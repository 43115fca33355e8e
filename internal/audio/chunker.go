package audio

import "github.com/eleven-am/glance/internal/shared"

const (
	// DefaultSampleRate is the PCM rate the realtime backend expects.
	DefaultSampleRate = 24000
	// DefaultChunkMS is how much audio each emitted chunk covers.
	DefaultChunkMS = 250
)

// Chunk is one fixed-duration slice of captured audio, ready for the AI
// session: mono 16-bit PCM at the target rate, with its level for the UI
// meter.
type Chunk struct {
	PCM        []byte
	Level      float32
	SampleRate int
	DurationMS int
	Timestamp  string
}

// Chunker converts raw device samples into Chunks. It is stateless across
// calls: each chunk is downmixed, resampled, and quantized independently,
// trading a tiny boundary discontinuity for simplicity.
type Chunker struct {
	targetRate int
	chunkMS    int
}

func NewChunker(targetRate, chunkMS int) *Chunker {
	if targetRate <= 0 {
		targetRate = DefaultSampleRate
	}
	if chunkMS <= 0 {
		chunkMS = DefaultChunkMS
	}
	return &Chunker{targetRate: targetRate, chunkMS: chunkMS}
}

func (c *Chunker) TargetRate() int { return c.targetRate }
func (c *Chunker) ChunkMS() int    { return c.chunkMS }

// Process runs the full pipeline on one drain of the capture buffer:
// downmix to mono, resample to the target rate, quantize to int16, compute
// RMS. Empty input produces an empty chunk with level 0.
func (c *Chunker) Process(raw []float32, channels, fromRate int) Chunk {
	mono := DownmixMono(raw, channels)
	resampled := Resample(mono, fromRate, c.targetRate)
	pcm := Float32ToInt16(resampled)

	return Chunk{
		PCM:        PCMBytes(pcm),
		Level:      RMS(pcm),
		SampleRate: c.targetRate,
		DurationMS: c.chunkMS,
		Timestamp:  shared.Timestamp(),
	}
}
