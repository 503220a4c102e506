package pitch

import (
	"fmt"
	"math"

	"github.com/apresai/voicekit/internal/audio"
)

// Shift applies req and returns a new buffer. The input is left untouched.
//
// Errors: an empty or malformed buffer yields *audio.DecodeError. A
// non-finite shift, one beyond ±LimitSemitones, or one beyond ±MaxSemitones
// with WithStrictRange yields *UnsupportedParameterError.
func Shift(req Request, opts ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validate(req, cfg); err != nil {
		return nil, err
	}

	in := req.Buffer
	if req.Semitones == 0 {
		return &Result{
			Buffer:      in.Clone(),
			Ratio:       1,
			VirtualRate: float64(in.SampleRate),
			Gain:        1,
		}, nil
	}

	ratio := req.Ratio()
	rate := float64(in.SampleRate)
	virtualRate := rate * ratio
	frames := in.Frames()

	shifted := make([][]float64, in.Channels)
	for ch, samples := range in.Samples {
		out, err := resampleChannel(samples, virtualRate, rate, cfg.quality)
		if err != nil {
			return nil, fmt.Errorf("resample channel %d: %w", ch, err)
		}
		shifted[ch] = out
	}

	stretched, err := stretch(shifted, frames, newStretchParams(in.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("restore duration: %w", err)
	}

	out := &audio.Buffer{
		SampleRate: in.SampleRate,
		Channels:   in.Channels,
		BitDepth:   in.BitDepth,
		Samples:    stretched,
	}

	gain := normalize(out, cfg)

	return &Result{
		Buffer:      out,
		Semitones:   req.Semitones,
		Ratio:       ratio,
		VirtualRate: virtualRate,
		Gain:        gain,
	}, nil
}

func validate(req Request, cfg config) error {
	if err := req.Buffer.Validate(); err != nil {
		return &audio.DecodeError{Err: err}
	}
	if math.IsNaN(req.Semitones) || math.IsInf(req.Semitones, 0) {
		return &UnsupportedParameterError{Name: "semitones", Value: req.Semitones, Reason: "must be a finite number"}
	}
	if cfg.strict && OutOfRange(req.Semitones) {
		return &UnsupportedParameterError{
			Name:   "semitones",
			Value:  req.Semitones,
			Reason: fmt.Sprintf("outside ±%g", MaxSemitones),
		}
	}
	if math.Abs(req.Semitones) > LimitSemitones {
		return &UnsupportedParameterError{
			Name:   "semitones",
			Value:  req.Semitones,
			Reason: fmt.Sprintf("outside ±%g", LimitSemitones),
		}
	}
	return nil
}
