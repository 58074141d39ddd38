package wav

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/fault"
)

func TestEncodeDecodePCM16(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	audio, err := Decode(bytes.NewReader(Encode(samples, 16000)))
	require.NoError(t, err)
	require.Equal(t, 16000, audio.SampleRate)
	require.True(t, audio.Quantized)
	require.InDeltaSlice(t, samples, audio.Samples, 1e-3)
	require.InDelta(t, 5.0/16000, audio.Duration(), 1e-9)
}

func TestWritePCM16Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePCM16(&buf, []byte{1, 2, 3, 4}, 8000, 2))

	header := buf.Bytes()
	require.Len(t, header, 48)
	require.Equal(t, "RIFF", string(header[0:4]))
	require.Equal(t, uint32(40), binary.LittleEndian.Uint32(header[4:8]))
	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(header[22:24]))
	require.Equal(t, uint32(8000), binary.LittleEndian.Uint32(header[24:28]))
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(header[28:32]))
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(header[40:44]))
}

func TestDecodeKeepsFirstChannel(t *testing.T) {
	pcm := []byte{}
	for _, pair := range [][2]int16{{16384, -16384}, {-8192, 8192}} {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(pair[0]))
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(pair[1]))
	}
	var buf bytes.Buffer
	require.NoError(t, WritePCM16(&buf, pcm, 22050, 2))

	audio, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 22050, audio.SampleRate)
	require.InDeltaSlice(t, []float32{0.5, -0.25}, audio.Samples, 1e-6)
}

func TestDecodeFloat32(t *testing.T) {
	payload := []byte{}
	for _, v := range []float32{0.25, -0.75} {
		payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(v))
	}
	data := []byte("RIFF\x00\x00\x00\x00WAVE")
	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:2], formatIEEEFloat)
	binary.LittleEndian.PutUint16(fmtChunk[2:4], 1)
	binary.LittleEndian.PutUint32(fmtChunk[4:8], 48000)
	binary.LittleEndian.PutUint16(fmtChunk[14:16], 32)
	data = append(data, "fmt "...)
	data = binary.LittleEndian.AppendUint32(data, 16)
	data = append(data, fmtChunk...)
	data = append(data, "LIST"...)
	data = binary.LittleEndian.AppendUint32(data, 3)
	data = append(data, 'a', 'b', 'c', 0)
	data = append(data, "data"...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(payload)))
	data = append(data, payload...)

	audio, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.False(t, audio.Quantized)
	require.Equal(t, 48000, audio.SampleRate)
	require.Equal(t, []float32{0.25, -0.75}, audio.Samples)
}

func TestDecodeEmptyInput(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	require.ErrorIs(t, err, fault.ErrEmptyAudio)
}

func TestDecodeRejectsNonWAV(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("ID3 not a wave file")))
	require.ErrorContains(t, err, "RIFF/WAVE")
}
