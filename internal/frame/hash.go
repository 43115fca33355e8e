package frame

import (
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

// AverageHash computes a 64-bit perceptual hash of img.
//
// The image is reduced to an 8x8 luminance grid, then each cell is compared
// against the mean of the 64 cells: bit i is set when cell i (raster order)
// is brighter than the mean. Two frames that look alike produce hashes with
// a small Hamming distance.
func AverageHash(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, 8, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum uint64
	for _, p := range small.Pix {
		sum += uint64(p)
	}
	mean := sum / 64

	var hash uint64
	for i, p := range small.Pix {
		if uint64(p) > mean {
			hash |= 1 << uint(i)
		}
	}

	// A flat frame has no cell above its own mean, which would collapse every
	// uniform image to the same hash. Threshold against mid-gray instead so
	// coarse brightness still registers.
	if hash == 0 {
		for i, p := range small.Pix {
			if p >= 128 {
				hash |= 1 << uint(i)
			}
		}
	}
	return hash
}

// HammingDistance counts the differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
