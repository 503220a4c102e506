package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/window"
)

// WSOLA timing for speech. Sequences are shorter than the music-oriented
// defaults so syllable onsets are not smeared.
const (
	sequenceMs = 40
	overlapMs  = 10
	searchMs   = 15
)

type stretchParams struct {
	sequence int
	overlap  int
	search   int
}

func newStretchParams(sampleRate int) stretchParams {
	ms := func(v int) int {
		n := sampleRate * v / 1000
		if n < 1 {
			n = 1
		}
		return n
	}
	p := stretchParams{
		sequence: ms(sequenceMs),
		overlap:  ms(overlapMs),
		search:   ms(searchMs),
	}
	if p.overlap >= p.sequence {
		p.overlap = p.sequence / 2
	}
	if p.overlap < 1 {
		p.overlap = 1
	}
	return p
}

// stretch resizes every channel to target frames without changing pitch.
// Segment offsets are chosen on the channel mix and applied to all channels
// so the stereo image stays aligned.
func stretch(in [][]float64, target int, p stretchParams) ([][]float64, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("no channels")
	}
	n := len(in[0])
	if n == target {
		out := make([][]float64, len(in))
		for ch := range in {
			out[ch] = append([]float64(nil), in[ch]...)
		}
		return out, nil
	}
	if n < 2*p.sequence || target < 2*p.sequence {
		return fitLength(in, target), nil
	}

	fadeIn, err := crossfade(p.overlap)
	if err != nil {
		return nil, err
	}

	mix := mixdown(in)
	scale := float64(n) / float64(target)
	hop := p.sequence - p.overlap

	out := make([][]float64, len(in))
	for ch := range out {
		out[ch] = make([]float64, target+p.sequence)
		copy(out[ch], in[ch][:p.sequence])
	}

	prevStart := 0
	for outPos := hop; outPos < target; outPos += hop {
		ref := prevStart + hop
		nominal := int(math.Round(float64(outPos) * scale))
		start := bestOverlap(mix, ref, nominal, p)

		for ch := range out {
			dst := out[ch]
			src := in[ch]
			for k := 0; k < p.overlap; k++ {
				dst[outPos+k] = dst[outPos+k]*(1-fadeIn[k]) + sampleAt(src, start+k)*fadeIn[k]
			}
			for k := p.overlap; k < p.sequence; k++ {
				dst[outPos+k] = sampleAt(src, start+k)
			}
		}
		prevStart = start
	}

	for ch := range out {
		out[ch] = out[ch][:target]
	}
	return out, nil
}

// bestOverlap finds the segment start within ±search of nominal whose first
// overlap samples best continue the reference region starting at ref.
func bestOverlap(mix []float64, ref, nominal int, p stretchParams) int {
	lo := nominal - p.search
	if lo < 0 {
		lo = 0
	}
	hi := nominal + p.search
	if limit := len(mix) - p.overlap; hi > limit {
		hi = limit
	}
	if hi < lo {
		return clampIndex(nominal, len(mix)-1)
	}

	best := lo
	bestScore := math.Inf(-1)
	for c := lo; c <= hi; c++ {
		var corr, energy float64
		for k := 0; k < p.overlap; k++ {
			a := sampleAt(mix, ref+k)
			b := mix[c+k]
			corr += a * b
			energy += b * b
		}
		score := corr / math.Sqrt(energy+1e-12)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// crossfade returns the rising half of a periodic Hann window.
func crossfade(n int) ([]float64, error) {
	w, err := window.Hann(2*n, window.WithPeriodic())
	if err != nil {
		return nil, fmt.Errorf("crossfade window: %w", err)
	}
	return w[:n], nil
}

// fitLength handles clips too short for WSOLA: each channel is padded with
// silence or truncated to target frames.
func fitLength(in [][]float64, target int) [][]float64 {
	out := make([][]float64, len(in))
	for ch, src := range in {
		dst := make([]float64, target)
		copy(dst, src)
		out[ch] = dst
	}
	return out
}

func mixdown(in [][]float64) []float64 {
	if len(in) == 1 {
		return in[0]
	}
	out := make([]float64, len(in[0]))
	scale := 1 / float64(len(in))
	for _, s := range in {
		for i, v := range s {
			out[i] += v * scale
		}
	}
	return out
}

func sampleAt(x []float64, i int) float64 {
	if i < 0 || i >= len(x) {
		return 0
	}
	return x[i]
}

func clampIndex(i, hi int) int {
	if i < 0 {
		return 0
	}
	if i > hi {
		return hi
	}
	return i
}
