package frame

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func solidImage(gray uint8, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}

func splitImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func TestAverageHash_ConsistentForSameImage(t *testing.T) {
	img := solidImage(100, 64, 64)
	h1 := AverageHash(img)
	h2 := AverageHash(img)
	if h1 != h2 {
		t.Errorf("same image must produce the same hash: %x vs %x", h1, h2)
	}
}

func TestAverageHash_DistinctImagesDistinctHashes(t *testing.T) {
	white := AverageHash(solidImage(255, 64, 64))
	black := AverageHash(solidImage(0, 64, 64))
	split := AverageHash(splitImage(64, 64))

	if white == black {
		t.Error("white and black should hash differently")
	}
	if split == white {
		t.Error("split and white should hash differently")
	}
	if split == black {
		t.Error("split and black should hash differently")
	}
}

func TestAverageHash_SmallBrightnessShiftIsSimilar(t *testing.T) {
	a := AverageHash(solidImage(128, 64, 64))
	b := AverageHash(solidImage(130, 64, 64))
	if dist := HammingDistance(a, b); dist >= 5 {
		t.Errorf("similar images should have hamming distance < 5, got %d", dist)
	}
}

func TestAverageHash_LargeChangeIsDistant(t *testing.T) {
	white := AverageHash(solidImage(255, 64, 64))
	split := AverageHash(splitImage(64, 64))
	if dist := HammingDistance(white, split); dist < 5 {
		t.Errorf("visually different images should have hamming distance >= 5, got %d", dist)
	}
}

func TestHammingDistance_Basics(t *testing.T) {
	tests := []struct {
		a, b uint64
		want int
	}{
		{0, 0, 0},
		{0xFF, 0x00, 8},
		{math.MaxUint64, 0, 64},
		{0xDEADBEEF, 0xDEADBEEF, 0},
	}
	for _, tt := range tests {
		if got := HammingDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("HammingDistance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
