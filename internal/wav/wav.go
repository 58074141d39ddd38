// Package wav reads and writes RIFF/WAVE PCM audio.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/segment"
)

const (
	formatPCM       = 1
	formatIEEEFloat = 3
	formatExtension = 0xFFFE
)

// Audio is decoded mono audio.
type Audio struct {
	Samples    []float32
	SampleRate int
	// Quantized reports integer source samples, already scaled by full scale.
	Quantized bool
}

// Duration returns the clip length in seconds.
func (a Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// Decode reads a WAV stream and keeps only its first channel.
//
// Supported encodings are 16-bit PCM and 32-bit IEEE float.
func Decode(r io.Reader) (Audio, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Audio{}, fmt.Errorf("read wav: %w", err)
	}
	if len(data) == 0 {
		return Audio{}, fault.New(fault.CodeEmptyAudio, nil, "audio input is empty")
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Audio{}, errors.New("not a RIFF/WAVE stream")
	}

	var (
		format        uint16
		channels      int
		sampleRate    int
		bitsPerSample int
		payload       []byte
		haveFormat    bool
	)
	for offset := 12; offset+8 <= len(data); {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := data[offset+8 : min(offset+8+size, len(data))]
		switch id {
		case "fmt ":
			if len(body) < 16 {
				return Audio{}, errors.New("wav fmt chunk is truncated")
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			if format == formatExtension && len(body) >= 26 {
				format = binary.LittleEndian.Uint16(body[24:26])
			}
			haveFormat = true
		case "data":
			payload = body
		}
		offset += 8 + size + size%2
	}
	if !haveFormat {
		return Audio{}, errors.New("wav stream has no fmt chunk")
	}
	if channels <= 0 || sampleRate <= 0 {
		return Audio{}, fmt.Errorf("wav stream declares %d channels at %d Hz", channels, sampleRate)
	}

	switch {
	case format == formatPCM && bitsPerSample == 16:
		return Audio{Samples: firstChannel16(payload, channels), SampleRate: sampleRate, Quantized: true}, nil
	case format == formatIEEEFloat && bitsPerSample == 32:
		return Audio{Samples: firstChannelFloat(payload, channels), SampleRate: sampleRate}, nil
	default:
		return Audio{}, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", format, bitsPerSample)
	}
}

func firstChannel16(payload []byte, channels int) []float32 {
	stride := 2 * channels
	out := make([]float32, 0, len(payload)/stride)
	for i := 0; i+2 <= len(payload); i += stride {
		v := int16(binary.LittleEndian.Uint16(payload[i : i+2]))
		out = append(out, float32(v)/segment.FullScale16)
	}
	return out
}

func firstChannelFloat(payload []byte, channels int) []float32 {
	stride := 4 * channels
	out := make([]float32, 0, len(payload)/stride)
	for i := 0; i+4 <= len(payload); i += stride {
		out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(payload[i:i+4])))
	}
	return out
}

// Encode renders mono float samples as a 16-bit PCM WAV file.
func Encode(samples []float32, sampleRate int) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes do not fail.
	_ = WritePCM16(&buf, PCM16(samples), sampleRate, 1)
	return buf.Bytes()
}

// PCM16 quantizes samples in [-1, 1] to little-endian s16 bytes.
func PCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := max(-1, min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(math.Round(v*32767))))
	}
	return out
}

// WritePCM16 writes a canonical 44-byte header followed by pcm.
func WritePCM16(w io.Writer, pcm []byte, sampleRate int, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
