package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultBitDepth is used when a buffer does not carry a usable bit depth.
const DefaultBitDepth = 16

// DecodeWAV reads a PCM WAV file into a Buffer.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: FormatWAV, Err: ErrEmptyFile}
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, &DecodeError{Format: FormatWAV, Err: errors.New("not a valid PCM WAV file")}
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Format: FormatWAV, Err: err}
	}

	channels := int(d.NumChans)
	rate := int(d.SampleRate)
	depth := int(d.BitDepth)
	if pcm.Format != nil {
		if pcm.Format.NumChannels > 0 {
			channels = pcm.Format.NumChannels
		}
		if pcm.Format.SampleRate > 0 {
			rate = pcm.Format.SampleRate
		}
	}
	if pcm.SourceBitDepth > 0 {
		depth = pcm.SourceBitDepth
	}
	if channels <= 0 {
		return nil, &DecodeError{Format: FormatWAV, Err: ErrChannelMismatch}
	}
	if rate <= 0 {
		return nil, &DecodeError{Format: FormatWAV, Err: ErrInvalidSampleRate}
	}

	frames := len(pcm.Data) / channels
	if frames == 0 {
		return nil, &DecodeError{Format: FormatWAV, Err: ErrEmptyBuffer}
	}

	buf := NewBuffer(rate, channels, depth, frames)
	scale, offset := intScale(depth)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Samples[ch][i] = (float64(pcm.Data[i*channels+ch]) - offset) / scale
		}
	}
	return buf, nil
}

// EncodeWAV writes buf as integer PCM. Samples are clamped to the
// representable range.
func EncodeWAV(w io.WriteSeeker, buf *Buffer) error {
	if err := buf.Validate(); err != nil {
		return &EncodeError{Format: FormatWAV, Err: err}
	}

	depth := buf.BitDepth
	switch depth {
	case 16, 24, 32:
	default:
		depth = DefaultBitDepth
	}

	frames := buf.Frames()
	data := make([]int, frames*buf.Channels)
	scale, _ := intScale(depth)
	maxVal := scale - 1
	for i := 0; i < frames; i++ {
		for ch := 0; ch < buf.Channels; ch++ {
			v := math.Round(buf.Samples[ch][i] * scale)
			if v > maxVal {
				v = maxVal
			} else if v < -scale {
				v = -scale
			}
			data[i*buf.Channels+ch] = int(v)
		}
	}

	enc := wav.NewEncoder(w, buf.SampleRate, depth, buf.Channels, 1)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buf.Channels, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: depth,
	}
	if err := enc.Write(ib); err != nil {
		return &EncodeError{Format: FormatWAV, Err: fmt.Errorf("write samples: %w", err)}
	}
	if err := enc.Close(); err != nil {
		return &EncodeError{Format: FormatWAV, Err: fmt.Errorf("finalize header: %w", err)}
	}
	return nil
}

// intScale returns the full-scale magnitude for a PCM bit depth and the DC
// offset of its integer encoding. 8-bit WAV is unsigned.
func intScale(depth int) (scale, offset float64) {
	switch depth {
	case 8:
		return 128, 128
	case 24:
		return 1 << 23, 0
	case 32:
		return 1 << 31, 0
	default:
		return 1 << 15, 0
	}
}
