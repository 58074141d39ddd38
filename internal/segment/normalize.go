package segment

import "math"

// FullScale16 is the int16 full-scale divisor.
const FullScale16 = 32768.0

// Normalize scales samples by their peak absolute value into [-1, 1].
//
// A silent clip is returned as zeros rather than dividing by zero.
func Normalize(samples []float32) []float32 {
	out := make([]float32, len(samples))
	peak := Peak(samples)
	if peak == 0 {
		return out
	}
	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		peak = max(peak, float32(math.Abs(float64(s))))
	}
	return peak
}

// FromPCM16 converts quantized samples with the fixed full-scale divisor.
func FromPCM16(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / FullScale16
	}
	return out
}

// FromPCM16LE converts little-endian s16 bytes, ignoring a trailing odd byte.
func FromPCM16LE(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		out[i] = float32(v) / FullScale16
	}
	return out
}

// Slice returns samples[start*rate : end*rate), clamped to the buffer.
func Slice(samples []float32, sampleRate int, start, end float64) []float32 {
	from := clampIndex(int(start*float64(sampleRate)), len(samples))
	to := clampIndex(int(end*float64(sampleRate)), len(samples))
	if to <= from {
		return nil
	}
	return samples[from:to]
}

func clampIndex(i, n int) int {
	return max(0, min(i, n))
}
