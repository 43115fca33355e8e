package audio

import (
	"encoding/binary"
	"math"
)

const maxInt16 = 32767.0

// DownmixMono collapses interleaved multi-channel samples to mono by
// averaging each frame's channels. Mono input is returned unchanged.
func DownmixMono(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Resample converts input from fromRate to toRate using linear interpolation
// between the two nearest source samples. Same-rate input is returned
// unchanged. Each call is independent; no filter state is carried between
// chunks.
func Resample(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(input) == 0 {
		return input
	}

	ratio := float64(fromRate) / float64(toRate)
	outputLen := int(math.Ceil(float64(len(input)) / ratio))
	output := make([]float32, outputLen)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)

		if idx+1 < len(input) {
			output[i] = float32(float64(input[idx])*(1-frac) + float64(input[idx+1])*frac)
		} else if idx < len(input) {
			output[i] = input[idx]
		}
	}
	return output
}

// Float32ToInt16 quantizes samples to 16-bit signed PCM, clamping to [-1, 1].
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * maxInt16)
	}
	return out
}

// Int16ToFloat32 maps signed 16-bit samples to [-1, 1].
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / maxInt16
	}
	return out
}

// Uint16ToFloat32 maps unsigned 16-bit samples to [-1, 1] by centering on the
// midpoint of the unsigned range.
func Uint16ToFloat32(samples []uint16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s)/math.MaxUint16*2.0 - 1.0
	}
	return out
}

// PCMBytes encodes samples as little-endian 16-bit PCM.
func PCMBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// PCMBytesToInt16 decodes little-endian 16-bit PCM. A trailing odd byte is
// dropped.
func PCMBytesToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// RMS computes the root mean square of a PCM chunk, normalized to [0, 1].
// Empty input yields 0.
func RMS(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum/float64(len(samples))) / maxInt16)
}
