package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineBuffer(t *testing.T, freq float64, rate, channels, frames int) *Buffer {
	t.Helper()
	gen := signal.NewGenerator(core.WithSampleRate(float64(rate)))
	tone, err := gen.Sine(freq, 0.5, frames)
	require.NoError(t, err)

	buf := NewBuffer(rate, channels, 16, frames)
	for ch := range buf.Samples {
		copy(buf.Samples[ch], tone)
	}
	return buf
}

func TestBufferValidate(t *testing.T) {
	tests := []struct {
		name string
		buf  *Buffer
		want error
	}{
		{"nil", nil, ErrEmptyBuffer},
		{"zero frames", NewBuffer(24000, 1, 16, 0), ErrEmptyBuffer},
		{"bad rate", NewBuffer(0, 1, 16, 10), ErrInvalidSampleRate},
		{"channel count", &Buffer{SampleRate: 8000, Channels: 2, Samples: [][]float64{{0}}}, ErrChannelMismatch},
		{"ragged", &Buffer{SampleRate: 8000, Channels: 2, Samples: [][]float64{{0, 0}, {0}}}, ErrChannelMismatch},
		{"ok", NewBuffer(8000, 2, 16, 4), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBufferDurationAndClone(t *testing.T) {
	buf := sineBuffer(t, 440, 24000, 2, 24000)
	assert.Equal(t, time.Second, buf.Duration())

	clone := buf.Clone()
	clone.Samples[0][10] = 0.99
	assert.NotEqual(t, clone.Samples[0][10], buf.Samples[0][10])
	assert.Equal(t, buf.Frames(), clone.Frames())
}

func TestBufferMonoAndInterleaved(t *testing.T) {
	buf := &Buffer{SampleRate: 8000, Channels: 2, Samples: [][]float64{{1, 0.5}, {0, -0.5}}}
	assert.Equal(t, []float64{0.5, 0}, buf.Mono())
	assert.Equal(t, []float64{1, 0, 0.5, -0.5}, buf.Interleaved())
	assert.InDelta(t, 1.0, buf.Peak(), 1e-12)
}

func TestWAVRoundTrip(t *testing.T) {
	for _, channels := range []int{1, 2} {
		buf := sineBuffer(t, 440, 24000, channels, 4800)

		data, err := Encode(context.Background(), buf, FormatWAV)
		require.NoError(t, err)
		assert.Equal(t, FormatWAV, DetectFormat(data, ""))

		got, err := Decode(context.Background(), data, "")
		require.NoError(t, err)
		assert.Equal(t, 24000, got.SampleRate)
		assert.Equal(t, channels, got.Channels)
		assert.Equal(t, 16, got.BitDepth)
		require.Equal(t, buf.Frames(), got.Frames())
		for ch := range buf.Samples {
			for i := range buf.Samples[ch] {
				require.InDelta(t, buf.Samples[ch][i], got.Samples[ch][i], 1.0/32768*1.01)
			}
		}
	}
}

func TestEncodeWAVClampsOverflow(t *testing.T) {
	buf := &Buffer{SampleRate: 8000, Channels: 1, BitDepth: 16, Samples: [][]float64{{1.5, -1.5, 0}}}
	data, err := Encode(context.Background(), buf, FormatWAV)
	require.NoError(t, err)

	got, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.Samples[0][0], 1.0)
	assert.GreaterOrEqual(t, got.Samples[0][1], -1.0)
	assert.InDelta(t, 1.0, math.Abs(got.Samples[0][0]), 1e-3)
}

func TestDecodeErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Decode(ctx, nil, FormatMP3)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Decode(ctx, []byte("definitely not audio"), FormatWAV)
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, FormatWAV, decErr.Format)

	_, err = Decode(ctx, []byte("plain text payload"), "")
	require.ErrorAs(t, err, &decErr)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeMP3(t *testing.T) {
	tests := []struct {
		file     string
		channels int
	}{
		{"mono_44100.mp3", 1},
		{"stereo_44100.mp3", 2},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("testdata", tt.file))
			require.NoError(t, err)
			require.Equal(t, FormatMP3, DetectFormat(data, ""))

			buf, err := Decode(context.Background(), data, FormatMP3)
			require.NoError(t, err)
			require.NoError(t, buf.Validate())
			assert.Equal(t, 44100, buf.SampleRate)
			assert.Equal(t, tt.channels, buf.Channels)
			assert.Len(t, buf.Samples, tt.channels)
			assert.Greater(t, buf.Frames(), 1152)
		})
	}
}

func TestMPEGChannels(t *testing.T) {
	mono := []byte{0xFF, 0xFB, 0x40, 0xC0}
	stereo := []byte{0xFF, 0xFB, 0x90, 0x64}
	tagged := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x02\xFF\xFB"), mono...)

	assert.Equal(t, 1, mpegChannels(mono))
	assert.Equal(t, 2, mpegChannels(stereo))
	assert.Equal(t, 1, mpegChannels(tagged), "sync bytes inside the tag are skipped")
	assert.Equal(t, 0, mpegChannels([]byte("not audio")))
}

func TestEncodeRejectsEmptyBuffer(t *testing.T) {
	_, err := Encode(context.Background(), NewBuffer(24000, 1, 16, 0), FormatWAV)
	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	assert.True(t, errors.Is(err, ErrEmptyBuffer))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		file string
		want Format
	}{
		{"riff", append([]byte("RIFF\x00\x00\x00\x00WAVEfmt "), make([]byte, 8)...), "", FormatWAV},
		{"id3", append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 200)...), "", FormatMP3},
		{"frame sync", []byte{0xFF, 0xFB, 0x90, 0x64, 0, 0, 0, 0}, "", FormatMP3},
		{"ogg", append([]byte("OggS"), make([]byte, 200)...), "", FormatOGG},
		{"flac", append([]byte("fLaC"), make([]byte, 200)...), "", FormatFLAC},
		{"extension fallback", []byte("??"), "clip.mp3", FormatMP3},
		{"unknown", []byte("??"), "", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.data, tt.file))
		})
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatMP3, ParseFormat(".MP3"))
	assert.Equal(t, FormatWAV, ParseFormat("wave"))
	assert.Equal(t, FormatUnknown, ParseFormat("txt"))
	assert.Equal(t, "audio/mpeg", FormatMP3.ContentType())
	assert.Equal(t, ".wav", FormatWAV.Ext())
}

func TestWriteFileAndVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "tone.wav")

	size, err := WriteFile(context.Background(), path, sineBuffer(t, 220, 16000, 1, 1600))
	require.NoError(t, err)
	assert.Greater(t, size, int64(44))

	got, format, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, FormatWAV, format)
	assert.Equal(t, 1600, got.Frames())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()

	_, err := VerifyFile(filepath.Join(dir, "missing.mp3"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.mp3")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = VerifyFile(empty)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = VerifyFile(dir)
	assert.Error(t, err)

	ok := filepath.Join(dir, "ok.mp3")
	require.NoError(t, os.WriteFile(ok, []byte{1, 2, 3}, 0o644))
	size, err := VerifyFile(ok)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}
