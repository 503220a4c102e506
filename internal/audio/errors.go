package audio

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBuffer       = errors.New("audio buffer has no frames")
	ErrInvalidSampleRate = errors.New("invalid sample rate")
	ErrChannelMismatch   = errors.New("channel layout mismatch")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrFFmpegMissing     = errors.New("ffmpeg not found in PATH")
	ErrEmptyFile         = errors.New("audio file is empty")
)

// DecodeError reports audio that could not be read into a Buffer.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" || e.Format == FormatUnknown {
		return fmt.Sprintf("decode audio: %v", e.Err)
	}
	return fmt.Sprintf("decode %s audio: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a Buffer that could not be written out.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s audio: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
