// Package audio holds decoded PCM buffers and the codecs that move them in
// and out of WAV, MP3 and anything else FFmpeg understands.
package audio

import (
	"fmt"
	"time"
)

// Buffer is decoded PCM audio. Samples holds one slice per channel with
// values in [-1, 1]; every channel has the same length.
type Buffer struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    [][]float64
}

// NewBuffer allocates a silent buffer.
func NewBuffer(sampleRate, channels, bitDepth, frames int) *Buffer {
	samples := make([][]float64, channels)
	for ch := range samples {
		samples[ch] = make([]float64, frames)
	}
	return &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
		Samples:    samples,
	}
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b == nil || len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Duration returns the playback length at the buffer's sample rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
		BitDepth:   b.BitDepth,
		Samples:    make([][]float64, len(b.Samples)),
	}
	for ch, s := range b.Samples {
		out.Samples[ch] = append([]float64(nil), s...)
	}
	return out
}

// Validate reports whether the buffer can be processed. A buffer with no
// frames is rejected with ErrEmptyBuffer.
func (b *Buffer) Validate() error {
	if b == nil {
		return ErrEmptyBuffer
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, b.SampleRate)
	}
	if b.Channels <= 0 || len(b.Samples) != b.Channels {
		return fmt.Errorf("%w: declared %d, have %d", ErrChannelMismatch, b.Channels, len(b.Samples))
	}
	frames := len(b.Samples[0])
	for ch, s := range b.Samples {
		if len(s) != frames {
			return fmt.Errorf("%w: channel %d has %d frames, want %d", ErrChannelMismatch, ch, len(s), frames)
		}
	}
	if frames == 0 {
		return ErrEmptyBuffer
	}
	return nil
}

// Mono returns the average of all channels.
func (b *Buffer) Mono() []float64 {
	n := b.Frames()
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if len(b.Samples) == 1 {
		copy(out, b.Samples[0])
		return out
	}
	scale := 1 / float64(len(b.Samples))
	for _, s := range b.Samples {
		for i, v := range s {
			out[i] += v * scale
		}
	}
	return out
}

// Interleaved returns the samples as frame-major interleaved data.
func (b *Buffer) Interleaved() []float64 {
	n := b.Frames()
	out := make([]float64, n*len(b.Samples))
	for ch, s := range b.Samples {
		for i, v := range s {
			out[i*len(b.Samples)+ch] = v
		}
	}
	return out
}

// Peak returns the largest absolute sample value across all channels.
func (b *Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Samples {
		for _, v := range s {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}
