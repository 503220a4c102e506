package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/voicekit/internal/audio"
	"github.com/apresai/voicekit/internal/ingest"
	"github.com/apresai/voicekit/internal/pitch"
	"github.com/apresai/voicekit/internal/progress"
	"github.com/apresai/voicekit/internal/tts"
)

var tracer = otel.Tracer("voicekit/pipeline")

type Options struct {
	// Provider names the TTS engine. Synthesizer, when set, is used instead
	// and is not closed by Run.
	Provider       string
	ProviderConfig tts.Config
	Synthesizer    tts.Provider

	Text   string
	Input  string
	Output string

	Language    string
	Accent      string
	Voice       string
	Slow        bool
	Speed       float64
	NativePitch float64
	Volume      float64

	Semitones      float64
	Normalize      pitch.NormalizeMode
	LoudnessTarget float64
	StrictRange    bool
	Quality        pitch.Quality

	Logger     *slog.Logger
	OnProgress progress.Callback
}

// Report describes a finished run.
type Report struct {
	Output    string
	Provider  string
	Format    audio.Format
	Size      int64
	Duration  time.Duration
	WordCount int

	Semitones   float64
	PitchStatus pitch.Status
	// PitchErr is why the pitch stage fell back to the unshifted audio.
	PitchErr error
	Gain     float64
	Warnings []string
}

type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run synthesizes the text, applies the pitch shift and writes the result.
// A failed pitch shift never fails the run: the unshifted speech is kept and
// the report says why.
func Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	emit := opts.OnProgress
	if emit == nil {
		emit = progress.NopCallback
	}
	log := opts.logger()

	if strings.TrimSpace(opts.Output) == "" {
		return nil, &PipelineError{Stage: "config", Message: "no output file given"}
	}

	// Stage 1: Ingest
	emit(progress.NewEvent(progress.StageIngest, "Reading text", 0, start))
	content, err := ingest.Resolve(ctx, opts.Text, opts.Input)
	if err != nil {
		return nil, &PipelineError{Stage: "ingest", Message: "failed to read text", Err: err}
	}
	log.Debug("text resolved", "source", content.Source, "words", content.WordCount, "chars", len(content.Text))

	provider, err := opts.provider()
	if err != nil {
		return nil, &PipelineError{Stage: "synthesize", Message: "failed to create TTS provider", Err: err}
	}
	if opts.Synthesizer == nil {
		defer provider.Close()
	}

	// Stage 2: Synthesize
	emit(progress.NewEvent(progress.StageSynthesize,
		fmt.Sprintf("Synthesizing %d words with %s", content.WordCount, provider.Name()), 0.1, start))
	result, err := synthesize(ctx, provider, opts.ttsRequest(content.Text))
	if err != nil {
		return nil, &PipelineError{Stage: "synthesize", Message: "speech synthesis failed", Err: err}
	}
	log.Debug("speech synthesized", "provider", provider.Name(), "bytes", len(result.Data), "format", result.Format)

	tmpDir, err := os.MkdirTemp("", "voicekit-*")
	if err != nil {
		return nil, &PipelineError{Stage: "write", Message: "failed to create temp directory", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	srcFormat := audio.Format(result.Format)
	rawPath := filepath.Join(tmpDir, "speech"+srcFormat.Ext())
	if err := os.WriteFile(rawPath, result.Data, 0o644); err != nil {
		return nil, &PipelineError{Stage: "write", Message: "failed to save synthesized audio", Err: err}
	}
	if _, err := audio.VerifyFile(rawPath); err != nil {
		return nil, &PipelineError{Stage: "verify", Message: "synthesized audio is missing or empty", Err: err}
	}

	report := &Report{
		Output:      opts.Output,
		Provider:    provider.Name(),
		Format:      targetFormat(opts.Output, srcFormat),
		WordCount:   content.WordCount,
		Semitones:   opts.Semitones,
		PitchStatus: pitch.StatusSkipped,
		Gain:        1,
	}
	warn := func(msg string) {
		report.Warnings = append(report.Warnings, msg)
		emit(progress.Event{Stage: progress.StagePitch, Message: msg, Warning: msg, Elapsed: time.Since(start)})
	}

	// Stage 3: Pitch
	data := result.Data
	var decoded *audio.Buffer
	if opts.Semitones != 0 {
		emit(progress.NewEvent(progress.StagePitch, fmt.Sprintf("Shifting pitch %+g semitones", opts.Semitones), 0.6, start))
		if pitch.OutOfRange(opts.Semitones) && !opts.StrictRange {
			log.Warn("pitch shift outside the recommended range", "semitones", opts.Semitones, "max", pitch.MaxSemitones)
			warn(fmt.Sprintf("%+g semitones is outside ±%g and may sound unnatural", opts.Semitones, pitch.MaxSemitones))
		}

		shifted, res, err := shiftBytes(ctx, data, srcFormat, report.Format, opts)
		if err != nil {
			log.Warn("pitch shift failed, keeping original audio", "semitones", opts.Semitones, "error", err)
			report.PitchStatus = pitch.StatusFallback
			report.PitchErr = err
			warn(fmt.Sprintf("pitch shift failed, kept original audio: %v", err))
		} else {
			data = shifted
			decoded = res.Buffer
			report.PitchStatus = pitch.StatusShifted
			report.Gain = res.Gain
		}
	}

	// Stage 4: Write
	if report.PitchStatus != pitch.StatusShifted && report.Format != srcFormat {
		converted, buf, err := transcode(ctx, data, srcFormat, report.Format)
		if err != nil {
			out := replaceExt(opts.Output, srcFormat)
			log.Warn("cannot convert audio, writing provider format", "from", srcFormat, "to", report.Format, "output", out, "error", err)
			warn(fmt.Sprintf("could not convert %s to %s, saved as %s", srcFormat, report.Format, out))
			report.Output = out
			report.Format = srcFormat
		} else {
			data = converted
			decoded = buf
		}
	}

	emit(progress.NewEvent(progress.StageWrite, "Writing "+report.Output, 0.9, start))
	if err := audio.WriteBytes(report.Output, data); err != nil {
		return nil, &PipelineError{Stage: "write", Message: "failed to write output", Err: err}
	}
	size, err := audio.VerifyFile(report.Output)
	if err != nil {
		return nil, &PipelineError{Stage: "verify", Message: "output file check failed", Err: err}
	}
	report.Size = size

	if decoded == nil {
		// Best effort: the duration is informational only.
		if buf, err := audio.Decode(ctx, data, report.Format); err == nil {
			decoded = buf
		}
	}
	if decoded != nil {
		report.Duration = decoded.Duration()
	}

	done := progress.NewEvent(progress.StageComplete, "Done", 1, start)
	done.OutputFile = report.Output
	done.SizeBytes = report.Size
	if report.Duration > 0 {
		done.Duration = progress.FormatDuration(report.Duration)
	}
	emit(done)

	log.Info("speech saved",
		"output", report.Output,
		"provider", report.Provider,
		"bytes", report.Size,
		"pitch_status", report.PitchStatus,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return report, nil
}

func synthesize(ctx context.Context, p tts.Provider, req tts.Request) (tts.AudioResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.synthesize",
		trace.WithAttributes(
			attribute.String("provider", p.Name()),
			attribute.Int("text_chars", len(req.Text)),
		))
	defer span.End()

	result, err := p.Synthesize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return tts.AudioResult{}, err
	}
	span.SetAttributes(attribute.Int("audio_bytes", len(result.Data)))
	return result, nil
}

// shiftBytes decodes data, shifts it and encodes it as out.
func shiftBytes(ctx context.Context, data []byte, in, out audio.Format, opts Options) ([]byte, *pitch.Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.pitch",
		trace.WithAttributes(
			attribute.Float64("semitones", opts.Semitones),
			attribute.String("input_format", string(in)),
			attribute.String("output_format", string(out)),
		))
	defer span.End()

	fail := func(msg string, err error) ([]byte, *pitch.Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return nil, nil, err
	}

	buf, err := audio.Decode(ctx, data, in)
	if err != nil {
		return fail("decode failed", err)
	}
	res, err := applyShift(ctx, buf, opts)
	if err != nil {
		return fail("shift failed", err)
	}
	encoded, err := audio.Encode(ctx, res.Buffer, out)
	if err != nil {
		return fail("encode failed", err)
	}
	span.SetAttributes(attribute.Float64("gain", res.Gain))
	return encoded, res, nil
}

func applyShift(ctx context.Context, buf *audio.Buffer, opts Options) (*pitch.Result, error) {
	_, span := tracer.Start(ctx, "pitch.shift",
		trace.WithAttributes(
			attribute.Int("frames", buf.Frames()),
			attribute.Int("sample_rate", buf.SampleRate),
			attribute.Int("channels", buf.Channels),
		))
	defer span.End()

	res, err := pitch.Shift(pitch.Request{Buffer: buf, Semitones: opts.Semitones}, opts.pitchOptions()...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Float64("ratio", res.Ratio), attribute.Float64("virtual_rate", res.VirtualRate))
	return res, nil
}

func transcode(ctx context.Context, data []byte, in, out audio.Format) ([]byte, *audio.Buffer, error) {
	buf, err := audio.Decode(ctx, data, in)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := audio.Encode(ctx, buf, out)
	if err != nil {
		return nil, nil, err
	}
	return encoded, buf, nil
}

// ShiftFile pitch-shifts the audio file at in and writes it to out. Unlike
// Run there is no fallback: any failure is returned.
func ShiftFile(ctx context.Context, in, out string, semitones float64, opts Options) (*Report, error) {
	start := time.Now()
	emit := opts.OnProgress
	if emit == nil {
		emit = progress.NopCallback
	}
	opts.Semitones = semitones

	emit(progress.NewEvent(progress.StageIngest, "Reading "+in, 0, start))
	buf, format, err := audio.ReadFile(ctx, in)
	if err != nil {
		return nil, &PipelineError{Stage: "decode", Message: "failed to read " + in, Err: err}
	}
	if pitch.OutOfRange(semitones) && !opts.StrictRange {
		opts.logger().Warn("pitch shift outside the recommended range", "semitones", semitones)
	}

	emit(progress.NewEvent(progress.StagePitch, fmt.Sprintf("Shifting pitch %+g semitones", semitones), 0.3, start))
	res, err := applyShift(ctx, buf, opts)
	if err != nil {
		return nil, &PipelineError{Stage: "pitch", Message: "pitch shift failed", Err: err}
	}

	target := targetFormat(out, format)
	emit(progress.NewEvent(progress.StageWrite, "Writing "+out, 0.8, start))
	encoded, err := audio.Encode(ctx, res.Buffer, target)
	if err != nil {
		return nil, &PipelineError{Stage: "write", Message: "failed to encode output", Err: err}
	}
	if err := audio.WriteBytes(out, encoded); err != nil {
		return nil, &PipelineError{Stage: "write", Message: "failed to write output", Err: err}
	}
	size, err := audio.VerifyFile(out)
	if err != nil {
		return nil, &PipelineError{Stage: "verify", Message: "output file check failed", Err: err}
	}

	status := pitch.StatusShifted
	if semitones == 0 {
		status = pitch.StatusSkipped
	}
	report := &Report{
		Output:      out,
		Format:      target,
		Size:        size,
		Duration:    res.Buffer.Duration(),
		Semitones:   semitones,
		PitchStatus: status,
		Gain:        res.Gain,
	}

	done := progress.NewEvent(progress.StageComplete, "Done", 1, start)
	done.OutputFile = out
	done.SizeBytes = size
	done.Duration = progress.FormatDuration(report.Duration)
	emit(done)
	return report, nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) provider() (tts.Provider, error) {
	if o.Synthesizer != nil {
		return o.Synthesizer, nil
	}
	name := o.Provider
	if name == "" {
		name = "gtts"
	}
	return tts.NewProvider(name, o.ProviderConfig)
}

func (o Options) ttsRequest(text string) tts.Request {
	return tts.Request{
		Text:     text,
		Language: o.Language,
		Accent:   o.Accent,
		Voice:    tts.Voice{ID: o.Voice},
		Slow:     o.Slow,
		Speed:    o.Speed,
		Pitch:    o.NativePitch,
		Volume:   o.Volume,
	}
}

func (o Options) pitchOptions() []pitch.Option {
	var opts []pitch.Option
	if o.Normalize != "" {
		opts = append(opts, pitch.WithNormalize(o.Normalize))
	}
	if o.LoudnessTarget != 0 {
		opts = append(opts, pitch.WithLoudnessTarget(o.LoudnessTarget))
	}
	if o.StrictRange {
		opts = append(opts, pitch.WithStrictRange(true))
	}
	if o.Quality != "" {
		opts = append(opts, pitch.WithQuality(o.Quality))
	}
	return opts
}

// targetFormat is the container implied by the output path, or the
// provider's own format when the path does not say.
func targetFormat(path string, src audio.Format) audio.Format {
	switch f := audio.FormatFromPath(path); f {
	case audio.FormatWAV, audio.FormatMP3:
		return f
	default:
		return src
	}
}

func replaceExt(path string, f audio.Format) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + f.Ext()
}

// IsStage reports whether err is a PipelineError from the given stage.
func IsStage(err error, stage string) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Stage == stage
}
