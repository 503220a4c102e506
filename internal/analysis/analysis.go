// Package analysis measures decoded audio: dominant frequency, peak level
// and integrated loudness.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/apresai/voicekit/internal/audio"
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/cwbudde/algo-dsp/measure/loudness"
)

// MaxAnalysisFrames caps the centered window DominantFrequency inspects.
const MaxAnalysisFrames = 16384

const (
	coarseStepHz = 2.0
	fineStepHz   = 0.05
)

var ErrNoSignal = errors.New("no signal to analyze")

// DominantFrequency returns the frequency in [minHz, maxHz] with the most
// energy. It scans a Hann-windowed, centered slice of samples with Goertzel
// filters, first on a coarse grid and then around the coarse winner.
func DominantFrequency(samples []float64, sampleRate, minHz, maxHz float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSignal
	}
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be > 0: %v", sampleRate)
	}
	nyquist := sampleRate / 2
	if maxHz <= 0 || maxHz > nyquist {
		maxHz = nyquist
	}
	if minHz < 0 {
		minHz = 0
	}
	if minHz >= maxHz {
		return 0, fmt.Errorf("empty frequency range [%v, %v]", minHz, maxHz)
	}

	frame := centered(samples, MaxAnalysisFrames)
	coeffs, err := window.Hann(len(frame))
	if err != nil {
		return 0, fmt.Errorf("analysis window: %w", err)
	}
	windowed, err := window.ApplyCoefficients(frame, coeffs)
	if err != nil {
		return 0, fmt.Errorf("apply window: %w", err)
	}

	best, bestPower, err := scan(windowed, sampleRate, minHz, maxHz, coarseStepHz)
	if err != nil {
		return 0, err
	}
	if bestPower <= 0 {
		return 0, ErrNoSignal
	}

	lo := math.Max(minHz, best-2*coarseStepHz)
	hi := math.Min(maxHz, best+2*coarseStepHz)
	best, _, err = scan(windowed, sampleRate, lo, hi, fineStepHz)
	if err != nil {
		return 0, err
	}
	return best, nil
}

func scan(x []float64, sampleRate, lo, hi, step float64) (float64, float64, error) {
	best := lo
	bestPower := -1.0
	for f := lo; f <= hi; f += step {
		p, err := spectrum.AnalyzeBlock(x, f, sampleRate)
		if err != nil {
			return 0, 0, fmt.Errorf("goertzel at %.2f Hz: %w", f, err)
		}
		if p > bestPower {
			bestPower = p
			best = f
		}
	}
	return best, bestPower, nil
}

func centered(x []float64, limit int) []float64 {
	if len(x) <= limit {
		return x
	}
	start := (len(x) - limit) / 2
	return x[start : start+limit]
}

// PeakDBFS returns the buffer's sample peak in dB relative to full scale.
// Silence reports -Inf.
func PeakDBFS(buf *audio.Buffer) float64 {
	return core.LinearToDB(buf.Peak())
}

// IntegratedLoudness measures the buffer with an EBU R128 meter. Clips
// shorter than one 400 ms gating block, or silent clips, report -Inf.
func IntegratedLoudness(buf *audio.Buffer) float64 {
	if buf.Frames() == 0 {
		return math.Inf(-1)
	}
	m := loudness.NewMeter(
		loudness.WithSampleRate(float64(buf.SampleRate)),
		loudness.WithChannels(buf.Channels),
	)
	m.StartIntegration()
	m.ProcessBlock(buf.Interleaved())
	lufs := m.Integrated()
	if lufs <= -120 {
		return math.Inf(-1)
	}
	return lufs
}

// Summary describes one decoded file for display.
type Summary struct {
	SampleRate        int
	Channels          int
	BitDepth          int
	Frames            int
	Duration          time.Duration
	PeakDBFS          float64
	LoudnessLUFS      float64
	DominantFrequency float64
}

// Summarize measures buf. Dominant frequency is searched between 50 Hz and
// 4 kHz, the range that carries voiced speech.
func Summarize(buf *audio.Buffer) (Summary, error) {
	if err := buf.Validate(); err != nil {
		return Summary{}, err
	}
	s := Summary{
		SampleRate:   buf.SampleRate,
		Channels:     buf.Channels,
		BitDepth:     buf.BitDepth,
		Frames:       buf.Frames(),
		Duration:     buf.Duration(),
		PeakDBFS:     PeakDBFS(buf),
		LoudnessLUFS: IntegratedLoudness(buf),
	}
	f, err := DominantFrequency(buf.Mono(), float64(buf.SampleRate), 50, 4000)
	if err != nil && !errors.Is(err, ErrNoSignal) {
		return s, err
	}
	s.DominantFrequency = f
	return s, nil
}
