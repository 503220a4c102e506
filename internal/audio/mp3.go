package audio

import (
	"bytes"
	"io"

	"github.com/gopxl/beep/mp3"
)

const mp3ChunkFrames = 4096

// DecodeMP3 decodes an MP3 stream in pure Go.
func DecodeMP3(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: FormatMP3, Err: ErrEmptyFile}
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, &DecodeError{Format: FormatMP3, Err: err}
	}
	defer streamer.Close()

	// The decoder always yields two channels; a mono source is duplicated
	// into both, so keep only the first.
	channels := format.NumChannels
	if channels <= 0 || channels > 2 {
		channels = 2
	}
	if mpegChannels(data) == 1 {
		channels = 1
	}
	rate := int(format.SampleRate)
	if rate <= 0 {
		return nil, &DecodeError{Format: FormatMP3, Err: ErrInvalidSampleRate}
	}

	capacity := streamer.Len()
	if capacity < 0 {
		capacity = 0
	}
	samples := make([][]float64, channels)
	for ch := range samples {
		samples[ch] = make([]float64, 0, capacity)
	}

	chunk := make([][2]float64, mp3ChunkFrames)
	for {
		n, ok := streamer.Stream(chunk)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				samples[ch] = append(samples[ch], chunk[i][ch])
			}
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, &DecodeError{Format: FormatMP3, Err: err}
	}
	if len(samples[0]) == 0 {
		return nil, &DecodeError{Format: FormatMP3, Err: ErrEmptyBuffer}
	}

	depth := format.Precision * 8
	if depth <= 0 {
		depth = DefaultBitDepth
	}
	return &Buffer{
		SampleRate: rate,
		Channels:   channels,
		BitDepth:   depth,
		Samples:    samples,
	}, nil
}

// mpegChannels reads the channel mode of the first MPEG frame, skipping an
// ID3v2 tag. It returns 0 when no frame header is found.
func mpegChannels(data []byte) int {
	i := 0
	if len(data) >= 10 && string(data[0:3]) == "ID3" {
		size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
		i = 10 + size
		if data[5]&0x10 != 0 {
			i += 10
		}
	}
	for ; i+4 <= len(data); i++ {
		h := data[i : i+4]
		if !isMPEGFrameSync(h) {
			continue
		}
		bitrate := h[2] >> 4
		rate := (h[2] >> 2) & 0x03
		if bitrate == 0x0F || rate == 0x03 {
			continue
		}
		if h[3]>>6 == 0x03 {
			return 1
		}
		return 2
	}
	return 0
}
