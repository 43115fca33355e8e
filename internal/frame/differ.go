package frame

import "sync"

// DefaultDiffThreshold is the minimum Hamming distance (of 64 bits) between
// consecutive frames before a frame is considered new enough to emit.
const DefaultDiffThreshold = 5

// Differ gates captured frames on perceptual change. It retains the hash of
// the most recently evaluated frame, so a slow drift of small changes is
// still measured frame-to-frame rather than against the last emitted frame.
type Differ struct {
	threshold int

	mu       sync.Mutex
	lastHash uint64
}

func NewDiffer(threshold int) *Differ {
	if threshold <= 0 {
		threshold = DefaultDiffThreshold
	}
	return &Differ{threshold: threshold}
}

// Diff is the outcome of evaluating one frame against its predecessor.
type Diff struct {
	Distance int
	// Percent is Distance/64 expressed as a percentage.
	Percent float64
	// Emit reports whether the frame changed enough to be worth sending.
	Emit bool
}

// Evaluate hashes the frame and compares it to the previously evaluated one.
// The stored hash is overwritten on every call, including skips.
func (d *Differ) Evaluate(hash uint64) Diff {
	d.mu.Lock()
	dist := HammingDistance(hash, d.lastHash)
	d.lastHash = hash
	d.mu.Unlock()

	return Diff{
		Distance: dist,
		Percent:  float64(dist) / 64.0 * 100.0,
		Emit:     dist >= d.threshold,
	}
}
