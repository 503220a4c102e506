package pitch

import (
	"math"
	"testing"
	"time"

	"github.com/apresai/voicekit/internal/analysis"
	"github.com/apresai/voicekit/internal/audio"
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(t *testing.T, freq float64, rate, channels int, seconds float64) *audio.Buffer {
	t.Helper()
	frames := int(float64(rate) * seconds)
	gen := signal.NewGenerator(core.WithSampleRate(float64(rate)))
	s, err := gen.Sine(freq, 0.5, frames)
	require.NoError(t, err)

	buf := audio.NewBuffer(rate, channels, 16, frames)
	for ch := range buf.Samples {
		copy(buf.Samples[ch], s)
	}
	return buf
}

func dominant(t *testing.T, buf *audio.Buffer) float64 {
	t.Helper()
	f, err := analysis.DominantFrequency(buf.Mono(), float64(buf.SampleRate), 50, 2000)
	require.NoError(t, err)
	return f
}

func TestShiftOctave(t *testing.T) {
	tests := []struct {
		name      string
		semitones float64
		want      float64
	}{
		{"up one octave", 12, 880},
		{"down one octave", -12, 220},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tone(t, 440, 24000, 1, 1)

			res, err := Shift(Request{Buffer: in, Semitones: tt.semitones})
			require.NoError(t, err)

			out := res.Buffer
			assert.Equal(t, 24000, out.SampleRate)
			assert.Equal(t, 1, out.Channels)
			assert.InDelta(t, in.Duration().Seconds(), out.Duration().Seconds(), (5 * time.Millisecond).Seconds())
			assert.InEpsilon(t, tt.want, dominant(t, out), 0.02)
			assert.InDelta(t, math.Pow(2, tt.semitones/12), res.Ratio, 1e-12)
			assert.InDelta(t, 24000*res.Ratio, res.VirtualRate, 1e-6)
		})
	}
}

func TestShiftZeroIsIdentity(t *testing.T) {
	in := tone(t, 440, 24000, 2, 0.5)

	res, err := Shift(Request{Buffer: in, Semitones: 0})
	require.NoError(t, err)
	assert.Equal(t, in, res.Buffer)
	assert.Equal(t, 1.0, res.Gain)

	res.Buffer.Samples[0][0] = 0.9
	assert.NotEqual(t, 0.9, in.Samples[0][0], "result must not alias the input")
}

func TestShiftPreservesDurationAndLayout(t *testing.T) {
	in := tone(t, 300, 22050, 2, 0.75)
	for _, s := range []float64{-7, -3, 2.5, 5, 8} {
		res, err := Shift(Request{Buffer: in, Semitones: s})
		require.NoError(t, err, "semitones %v", s)
		assert.Equal(t, in.Frames(), res.Buffer.Frames(), "semitones %v", s)
		assert.Equal(t, in.Channels, res.Buffer.Channels)
		assert.Equal(t, in.SampleRate, res.Buffer.SampleRate)
		assert.Equal(t, in.BitDepth, res.Buffer.BitDepth)
	}
}

func TestShiftMonotonic(t *testing.T) {
	in := tone(t, 440, 24000, 1, 1)

	var freqs []float64
	for _, s := range []float64{-5, -3, 0, 3, 5} {
		res, err := Shift(Request{Buffer: in, Semitones: s})
		require.NoError(t, err)
		freqs = append(freqs, dominant(t, res.Buffer))
	}
	for i := 1; i < len(freqs); i++ {
		assert.Greater(t, freqs[i], freqs[i-1], "frequencies %v", freqs)
	}
}

func TestShiftRoundTrip(t *testing.T) {
	in := tone(t, 440, 24000, 1, 1)

	up, err := Shift(Request{Buffer: in, Semitones: 5})
	require.NoError(t, err)
	back, err := Shift(Request{Buffer: up.Buffer, Semitones: -5})
	require.NoError(t, err)

	assert.InEpsilon(t, 440, dominant(t, back.Buffer), 0.01)
	assert.Equal(t, in.Frames(), back.Buffer.Frames())
}

func TestShiftNeverClips(t *testing.T) {
	in := tone(t, 440, 24000, 2, 0.5)
	for ch := range in.Samples {
		for i := range in.Samples[ch] {
			in.Samples[ch][i] *= 1.9 // hot input, peaks at 0.95
		}
	}
	for _, mode := range []NormalizeMode{NormalizePeak, NormalizeLoudness, NormalizeNone} {
		res, err := Shift(Request{Buffer: in, Semitones: 7}, WithNormalize(mode))
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Buffer.Peak(), ceiling+1e-12, "mode %s", mode)
	}
}

func TestShiftPeakNormalization(t *testing.T) {
	in := tone(t, 440, 24000, 1, 0.5)

	res, err := Shift(Request{Buffer: in, Semitones: 3})
	require.NoError(t, err)
	assert.InDelta(t, ceiling, res.Buffer.Peak(), 1e-9)
	assert.Greater(t, res.Gain, 1.0)
}

func TestShiftLoudnessNormalization(t *testing.T) {
	in := tone(t, 440, 24000, 1, 2)
	for i := range in.Samples[0] {
		in.Samples[0][i] *= 0.1
	}

	res, err := Shift(Request{Buffer: in, Semitones: -2}, WithNormalize(NormalizeLoudness), WithLoudnessTarget(-23))
	require.NoError(t, err)
	assert.InDelta(t, -23, analysis.IntegratedLoudness(res.Buffer), 1.0)
}

func TestShiftDoesNotMutateInput(t *testing.T) {
	in := tone(t, 440, 16000, 1, 0.5)
	before := in.Clone()

	_, err := Shift(Request{Buffer: in, Semitones: -4})
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestShiftDeterministic(t *testing.T) {
	in := tone(t, 523.25, 24000, 1, 0.5)

	a, err := Shift(Request{Buffer: in, Semitones: 3.5})
	require.NoError(t, err)
	b, err := Shift(Request{Buffer: in, Semitones: 3.5})
	require.NoError(t, err)
	assert.Equal(t, a.Buffer.Samples, b.Buffer.Samples)
}

func TestShiftShortClip(t *testing.T) {
	in := tone(t, 440, 24000, 1, 0.02)

	res, err := Shift(Request{Buffer: in, Semitones: 4})
	require.NoError(t, err)
	assert.Equal(t, in.Frames(), res.Buffer.Frames())
}

func TestShiftErrors(t *testing.T) {
	t.Run("empty buffer", func(t *testing.T) {
		_, err := Shift(Request{Buffer: audio.NewBuffer(24000, 1, 16, 0), Semitones: 3})
		var decErr *audio.DecodeError
		require.ErrorAs(t, err, &decErr)
		assert.ErrorIs(t, err, audio.ErrEmptyBuffer)
	})

	t.Run("nil buffer", func(t *testing.T) {
		_, err := Shift(Request{Semitones: 3})
		var decErr *audio.DecodeError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("non-finite semitones", func(t *testing.T) {
		in := tone(t, 440, 8000, 1, 0.1)
		for _, s := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err := Shift(Request{Buffer: in, Semitones: s})
			assert.ErrorIs(t, err, ErrUnsupportedParameter)
		}
	})

	t.Run("strict range", func(t *testing.T) {
		in := tone(t, 440, 8000, 1, 0.25)
		_, err := Shift(Request{Buffer: in, Semitones: 13}, WithStrictRange(true))
		var paramErr *UnsupportedParameterError
		require.ErrorAs(t, err, &paramErr)
		assert.Equal(t, "semitones", paramErr.Name)

		_, err = Shift(Request{Buffer: in, Semitones: 13})
		assert.NoError(t, err, "out-of-range shifts are allowed without strict mode")
	})

	t.Run("hard limit", func(t *testing.T) {
		in := tone(t, 440, 8000, 1, 0.25)
		_, err := Shift(Request{Buffer: in, Semitones: -LimitSemitones})
		assert.NoError(t, err)

		for _, s := range []float64{LimitSemitones + 1, -LimitSemitones - 1} {
			_, err = Shift(Request{Buffer: in, Semitones: s})
			var paramErr *UnsupportedParameterError
			require.ErrorAs(t, err, &paramErr, "%g", s)
			assert.Contains(t, paramErr.Reason, "±48")
		}
	})
}

func TestOutOfRange(t *testing.T) {
	assert.False(t, OutOfRange(12))
	assert.False(t, OutOfRange(-12))
	assert.True(t, OutOfRange(12.5))
	assert.True(t, OutOfRange(-20))
}

func TestShiftQuality(t *testing.T) {
	in := tone(t, 440, 24000, 1, 1)
	for _, q := range []Quality{QualityFast, QualityBalanced, QualityBest} {
		t.Run(string(q), func(t *testing.T) {
			res, err := Shift(Request{Buffer: in, Semitones: 12}, WithQuality(q))
			require.NoError(t, err)
			assert.Equal(t, in.Frames(), res.Buffer.Frames())
			assert.InEpsilon(t, 880, dominant(t, res.Buffer), 0.02)
		})
	}
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality("")
	require.NoError(t, err)
	assert.Equal(t, QualityBalanced, q)

	q, err = ParseQuality("best")
	require.NoError(t, err)
	assert.Equal(t, QualityBest, q)

	_, err = ParseQuality("ultra")
	assert.ErrorContains(t, err, "unknown quality")
}

func TestParseNormalizeMode(t *testing.T) {
	m, err := ParseNormalizeMode("")
	require.NoError(t, err)
	assert.Equal(t, NormalizePeak, m)

	m, err = ParseNormalizeMode("loudness")
	require.NoError(t, err)
	assert.Equal(t, NormalizeLoudness, m)

	_, err = ParseNormalizeMode("rms")
	assert.Error(t, err)
}
