// Package pitch shifts the perceived pitch of decoded speech by resampling.
//
// A shift of s semitones scales every frequency by 2^(s/12). The samples are
// reinterpreted as if recorded at rate*2^(s/12), rendered back to the
// original rate with a polyphase FIR resampler, stretched back to the
// original length with WSOLA, and normalized. The input buffer is never
// modified.
package pitch

import (
	"errors"
	"fmt"
	"math"

	"github.com/apresai/voicekit/internal/audio"
	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// MaxSemitones is the edge of the recommended range. Larger shifts are
// accepted unless strict range checking is on.
const MaxSemitones = 12.0

// LimitSemitones bounds every shift, strict or not. Four octaves either way
// already resamples by a factor of 16.
const LimitSemitones = 48.0

// DefaultLoudnessTarget is the integrated loudness used by NormalizeLoudness.
const DefaultLoudnessTarget = -16.0

// HeadroomDB is the distance kept below full scale by normalization.
const HeadroomDB = 0.1

// ErrUnsupportedParameter is matched by every UnsupportedParameterError.
var ErrUnsupportedParameter = errors.New("unsupported parameter")

// UnsupportedParameterError reports a shift parameter that cannot be honored.
type UnsupportedParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *UnsupportedParameterError) Error() string {
	return fmt.Sprintf("unsupported %s %v: %s", e.Name, e.Value, e.Reason)
}

func (e *UnsupportedParameterError) Is(target error) bool {
	return target == ErrUnsupportedParameter
}

// Request is an immutable description of one shift.
type Request struct {
	Buffer    *audio.Buffer
	Semitones float64
}

// Ratio is the frequency scale factor 2^(semitones/12).
func (r Request) Ratio() float64 {
	return math.Pow(2, r.Semitones/12)
}

// Result carries the shifted audio. Buffer has the input's sample rate,
// channel count and frame count.
type Result struct {
	Buffer      *audio.Buffer
	Semitones   float64
	Ratio       float64
	VirtualRate float64
	// Gain is the linear gain applied by normalization.
	Gain float64
}

// Status describes what happened to the pitch stage of a synthesis run.
type Status string

const (
	StatusShifted  Status = "shifted"
	StatusSkipped  Status = "skipped"
	StatusFallback Status = "fallback"
)

// NormalizeMode selects the level correction applied after shifting.
type NormalizeMode string

const (
	NormalizePeak     NormalizeMode = "peak"
	NormalizeLoudness NormalizeMode = "loudness"
	NormalizeNone     NormalizeMode = "none"
)

// ParseNormalizeMode accepts "peak", "loudness" or "none".
func ParseNormalizeMode(s string) (NormalizeMode, error) {
	switch NormalizeMode(s) {
	case "", NormalizePeak:
		return NormalizePeak, nil
	case NormalizeLoudness:
		return NormalizeLoudness, nil
	case NormalizeNone:
		return NormalizeNone, nil
	default:
		return "", fmt.Errorf("unknown normalize mode %q: choose peak, loudness, or none", s)
	}
}

// Quality selects the resampler's anti-aliasing profile.
type Quality string

const (
	QualityFast     Quality = "fast"
	QualityBalanced Quality = "balanced"
	QualityBest     Quality = "best"
)

// ParseQuality accepts "fast", "balanced" or "best".
func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case "", QualityBalanced:
		return QualityBalanced, nil
	case QualityFast, QualityBest:
		return Quality(s), nil
	default:
		return "", fmt.Errorf("unknown quality %q: choose fast, balanced, or best", s)
	}
}

func (q Quality) resampleQuality() resample.Quality {
	switch q {
	case QualityFast:
		return resample.QualityFast
	case QualityBest:
		return resample.QualityBest
	default:
		return resample.QualityBalanced
	}
}

// OutOfRange reports whether semitones lies outside ±MaxSemitones.
func OutOfRange(semitones float64) bool {
	return math.Abs(semitones) > MaxSemitones
}

type config struct {
	normalize      NormalizeMode
	loudnessTarget float64
	strict         bool
	quality        resample.Quality
}

func defaultConfig() config {
	return config{
		normalize:      NormalizePeak,
		loudnessTarget: DefaultLoudnessTarget,
		quality:        resample.QualityBalanced,
	}
}

// Option configures Shift.
type Option func(*config)

// WithNormalize selects the normalization mode. Peak is the default.
func WithNormalize(mode NormalizeMode) Option {
	return func(c *config) {
		if mode != "" {
			c.normalize = mode
		}
	}
}

// WithLoudnessTarget sets the LUFS target for NormalizeLoudness.
func WithLoudnessTarget(lufs float64) Option {
	return func(c *config) {
		if !math.IsNaN(lufs) && !math.IsInf(lufs, 0) {
			c.loudnessTarget = lufs
		}
	}
}

// WithStrictRange rejects shifts beyond ±MaxSemitones.
func WithStrictRange(strict bool) Option {
	return func(c *config) { c.strict = strict }
}

// WithQuality selects the resampler profile. Balanced is the default.
func WithQuality(q Quality) Option {
	return func(c *config) {
		if q != "" {
			c.quality = q.resampleQuality()
		}
	}
}
