package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxWidth    = 1024
	DefaultJPEGQuality = 75
)

// Encoded is a frame ready to hand to an AI provider: base64 JPEG plus the
// dimensions it was encoded at and how different it was from its predecessor.
type Encoded struct {
	Data      string
	Width     int
	Height    int
	DiffPct   float64
	Timestamp string
}

// Encode downscales img to at most maxWidth (aspect ratio preserved) and
// returns it as a base64 JPEG at the given quality.
func Encode(img image.Image, maxWidth, quality int) (string, int, int, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > maxWidth {
		ratio := float64(maxWidth) / float64(w)
		newH := int(math.Round(float64(h) * ratio))
		scaled := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.BiLinear.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
		img = scaled
		w, h = maxWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", 0, 0, fmt.Errorf("jpeg encode: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), w, h, nil
}
