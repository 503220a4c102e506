package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/voicekit/internal/analysis"
	"github.com/apresai/voicekit/internal/audio"
	"github.com/apresai/voicekit/internal/ingest"
	"github.com/apresai/voicekit/internal/pitch"
	"github.com/apresai/voicekit/internal/progress"
	"github.com/apresai/voicekit/internal/tts"
)

// fakeProvider returns canned audio and records the request it saw.
type fakeProvider struct {
	data   []byte
	format tts.AudioFormat
	err    error
	got    tts.Request
	calls  int
}

func (f *fakeProvider) Name() string            { return "fake" }
func (f *fakeProvider) DefaultVoice() tts.Voice { return tts.Voice{ID: "fake-voice"} }
func (f *fakeProvider) Close() error            { return nil }
func (f *fakeProvider) Synthesize(_ context.Context, req tts.Request) (tts.AudioResult, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return tts.AudioResult{}, f.err
	}
	return tts.AudioResult{Data: f.data, Format: f.format}, nil
}

func toneWAV(t *testing.T, freq float64) []byte {
	t.Helper()
	const rate = 22050
	gen := signal.NewGenerator(core.WithSampleRate(rate))
	s, err := gen.Sine(freq, 0.5, rate)
	require.NoError(t, err)

	buf := audio.NewBuffer(rate, 1, 16, len(s))
	copy(buf.Samples[0], s)
	data, err := audio.Encode(context.Background(), buf, audio.FormatWAV)
	require.NoError(t, err)
	return data
}

func dominantInFile(t *testing.T, path string) float64 {
	t.Helper()
	buf, _, err := audio.ReadFile(context.Background(), path)
	require.NoError(t, err)
	f, err := analysis.DominantFrequency(buf.Mono(), float64(buf.SampleRate), 50, 2000)
	require.NoError(t, err)
	return f
}

func TestRunShiftsPitch(t *testing.T) {
	fake := &fakeProvider{data: toneWAV(t, 440), format: tts.FormatWAV}
	out := filepath.Join(t.TempDir(), "out.wav")

	var stages []progress.Stage
	report, err := Run(context.Background(), Options{
		Synthesizer: fake,
		Text:        "Halo, apa kabar?",
		Language:    "id",
		Accent:      "co.id",
		Slow:        true,
		Output:      out,
		Semitones:   12,
		OnProgress:  func(e progress.Event) { stages = append(stages, e.Stage) },
	})
	require.NoError(t, err)

	assert.Equal(t, pitch.StatusShifted, report.PitchStatus)
	assert.NoError(t, report.PitchErr)
	assert.Equal(t, out, report.Output)
	assert.Equal(t, audio.FormatWAV, report.Format)
	assert.Equal(t, "fake", report.Provider)
	assert.Greater(t, report.Size, int64(0))
	assert.InDelta(t, 1.0, report.Duration.Seconds(), 0.01)
	assert.InEpsilon(t, 880, dominantInFile(t, out), 0.02)

	assert.Equal(t, "Halo, apa kabar?", fake.got.Text)
	assert.Equal(t, "co.id", fake.got.Accent)
	assert.True(t, fake.got.Slow)

	require.NotEmpty(t, stages)
	assert.Equal(t, progress.StageIngest, stages[0])
	assert.Equal(t, progress.StageComplete, stages[len(stages)-1])
	assert.Contains(t, stages, progress.StagePitch)
}

func TestRunZeroSemitonesKeepsAudio(t *testing.T) {
	raw := toneWAV(t, 300)
	fake := &fakeProvider{data: raw, format: tts.FormatWAV}
	out := filepath.Join(t.TempDir(), "nested", "out.wav")

	report, err := Run(context.Background(), Options{Synthesizer: fake, Text: "halo", Output: out})
	require.NoError(t, err)
	assert.Equal(t, pitch.StatusSkipped, report.PitchStatus)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestRunFallsBackWhenAudioCannotBeDecoded(t *testing.T) {
	raw := []byte("RIFF this is not really a wave file")
	fake := &fakeProvider{data: raw, format: tts.FormatWAV}
	out := filepath.Join(t.TempDir(), "out.wav")

	var warnings []string
	report, err := Run(context.Background(), Options{
		Synthesizer: fake,
		Text:        "halo",
		Output:      out,
		Semitones:   -5,
		OnProgress: func(e progress.Event) {
			if e.Warning != "" {
				warnings = append(warnings, e.Warning)
			}
		},
	})
	require.NoError(t, err, "pitch failure must not fail the run")
	assert.Equal(t, pitch.StatusFallback, report.PitchStatus)
	require.Error(t, report.PitchErr)
	var decodeErr *audio.DecodeError
	assert.ErrorAs(t, report.PitchErr, &decodeErr)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "kept original audio")

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestRunOutOfRangeWarns(t *testing.T) {
	fake := &fakeProvider{data: toneWAV(t, 200), format: tts.FormatWAV}
	report, err := Run(context.Background(), Options{
		Synthesizer: fake,
		Text:        "halo",
		Output:      filepath.Join(t.TempDir(), "out.wav"),
		Semitones:   14,
	})
	require.NoError(t, err)
	assert.Equal(t, pitch.StatusShifted, report.PitchStatus)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "outside")
}

func TestRunStrictRangeFallsBack(t *testing.T) {
	fake := &fakeProvider{data: toneWAV(t, 200), format: tts.FormatWAV}
	report, err := Run(context.Background(), Options{
		Synthesizer: fake,
		Text:        "halo",
		Output:      filepath.Join(t.TempDir(), "out.wav"),
		Semitones:   14,
		StrictRange: true,
	})
	require.NoError(t, err)
	assert.Equal(t, pitch.StatusFallback, report.PitchStatus)
	assert.ErrorIs(t, report.PitchErr, pitch.ErrUnsupportedParameter)
}

func TestRunConvertFailureKeepsProviderFormat(t *testing.T) {
	old := audio.FFmpegBinary
	audio.FFmpegBinary = "voicekit-test-missing-ffmpeg"
	t.Cleanup(func() { audio.FFmpegBinary = old })

	raw := toneWAV(t, 300)
	fake := &fakeProvider{data: raw, format: tts.FormatWAV}
	dir := t.TempDir()

	report, err := Run(context.Background(), Options{Synthesizer: fake, Text: "halo", Output: filepath.Join(dir, "out.mp3")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.wav"), report.Output)
	assert.Equal(t, audio.FormatWAV, report.Format)
	require.Len(t, report.Warnings, 1)
	assert.FileExists(t, report.Output)
	assert.NoFileExists(t, filepath.Join(dir, "out.mp3"))
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("no text", func(t *testing.T) {
		_, err := Run(context.Background(), Options{Synthesizer: &fakeProvider{}, Output: filepath.Join(dir, "a.wav")})
		assert.True(t, IsStage(err, "ingest"))
		assert.ErrorIs(t, err, ingest.ErrNoInput)
	})

	t.Run("no output", func(t *testing.T) {
		_, err := Run(context.Background(), Options{Synthesizer: &fakeProvider{}, Text: "halo"})
		assert.True(t, IsStage(err, "config"))
	})

	t.Run("provider failure", func(t *testing.T) {
		fake := &fakeProvider{err: &tts.SynthesisError{Provider: "fake", Message: "quota exceeded"}}
		_, err := Run(context.Background(), Options{Synthesizer: fake, Text: "halo", Output: filepath.Join(dir, "b.wav")})
		assert.True(t, IsStage(err, "synthesize"))
		var synthErr *tts.SynthesisError
		assert.ErrorAs(t, err, &synthErr)
		assert.NoFileExists(t, filepath.Join(dir, "b.wav"))
	})

	t.Run("empty audio", func(t *testing.T) {
		fake := &fakeProvider{format: tts.FormatMP3}
		_, err := Run(context.Background(), Options{Synthesizer: fake, Text: "halo", Output: filepath.Join(dir, "c.mp3")})
		assert.True(t, IsStage(err, "verify"))
		assert.ErrorIs(t, err, audio.ErrEmptyFile)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := Run(context.Background(), Options{Provider: "festival", Text: "halo", Output: filepath.Join(dir, "d.wav")})
		assert.True(t, IsStage(err, "synthesize"))
	})
}

func TestShiftFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	require.NoError(t, os.WriteFile(in, toneWAV(t, 440), 0o644))
	out := filepath.Join(dir, "out.wav")

	report, err := ShiftFile(context.Background(), in, out, -12, Options{})
	require.NoError(t, err)
	assert.Equal(t, pitch.StatusShifted, report.PitchStatus)
	assert.InDelta(t, 1.0, report.Duration.Seconds(), 0.01)
	assert.InEpsilon(t, 220, dominantInFile(t, out), 0.02)
}

func TestShiftFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ShiftFile(context.Background(), filepath.Join(dir, "missing.wav"), filepath.Join(dir, "o.wav"), 3, Options{})
	assert.True(t, IsStage(err, "decode"))

	in := filepath.Join(dir, "in.wav")
	require.NoError(t, os.WriteFile(in, toneWAV(t, 440), 0o644))
	_, err = ShiftFile(context.Background(), in, filepath.Join(dir, "o.wav"), 13, Options{StrictRange: true})
	assert.True(t, IsStage(err, "pitch"))
	assert.ErrorIs(t, err, pitch.ErrUnsupportedParameter)
}

func TestPipelineError(t *testing.T) {
	inner := errors.New("boom")
	err := &PipelineError{Stage: "write", Message: "failed to write output", Err: inner}
	assert.Equal(t, "[write] failed to write output: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "[verify] empty", (&PipelineError{Stage: "verify", Message: "empty"}).Error())
}

func TestTargetFormat(t *testing.T) {
	assert.Equal(t, audio.FormatWAV, targetFormat("a.WAV", audio.FormatMP3))
	assert.Equal(t, audio.FormatMP3, targetFormat("a.mp3", audio.FormatWAV))
	assert.Equal(t, audio.FormatMP3, targetFormat("a.ogg", audio.FormatMP3))
	assert.Equal(t, audio.FormatWAV, targetFormat("speech", audio.FormatWAV))
	assert.Equal(t, "dir/a.wav", replaceExt("dir/a.mp3", audio.FormatWAV))
}
