package cli

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/apresai/voicekit/internal/analysis"
	"github.com/apresai/voicekit/internal/audio"
	"github.com/apresai/voicekit/internal/batch"
	"github.com/apresai/voicekit/internal/pipeline"
	"github.com/apresai/voicekit/internal/progress"
	"github.com/apresai/voicekit/internal/tts"
)

var (
	flagShiftOutput string
	flagPreset      string
	flagManifest    string
	flagOutputDir   string
)

var shiftCmd = &cobra.Command{
	Use:   "shift INPUT",
	Short: "Shift the pitch of an existing audio file without changing its length",
	Example: `  voicekit shift voice.wav --pitch -5
  voicekit shift voice.mp3 --pitch 3 --normalize loudness -o brighter.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runShift,
}

var variationsCmd = &cobra.Command{
	Use:     "variations",
	Aliases: []string{"batch"},
	Short:   "Render a set of voice or pitch variations from one text",
	Example: `  voicekit variations --preset pitch
  voicekit variations --preset voices --text "Selamat pagi"
  voicekit variations --manifest my-variants.yaml --output-dir out/`,
	RunE: runVariations,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Print duration, level and dominant frequency of audio files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(shiftCmd)
	rootCmd.AddCommand(variationsCmd)
	rootCmd.AddCommand(analyzeCmd)

	shiftCmd.Flags().StringVarP(&flagShiftOutput, "output", "o", "", "Output file (default: INPUT_shifted.EXT)")
	addPitchFlags(shiftCmd.Flags())

	f := variationsCmd.Flags()
	f.StringVar(&flagPreset, "preset", "", "Built-in variation set: "+strings.Join(batch.PresetNames(), ", "))
	f.StringVar(&flagManifest, "manifest", "", "YAML manifest listing the variations")
	f.StringVarP(&flagText, "text", "t", "", "Override the manifest text")
	f.StringVarP(&flagInput, "input", "i", "", "Read the text from a file, PDF, URL, or - for stdin")
	f.StringVar(&flagOutputDir, "output-dir", "", "Directory for the generated files")
	f.StringVar(&flagOpenAIModel, "openai-model", "", "OpenAI speech model (default gpt-4o-mini-tts)")
	f.StringVar(&flagEngineBinary, "engine-binary", "", "Path to the espeak or edge-tts executable")
	variationsCmd.MarkFlagsMutuallyExclusive("preset", "manifest")
	variationsCmd.MarkFlagsOneRequired("preset", "manifest")
}

func addPitchFlags(f *pflag.FlagSet) {
	f.Float64VarP(&flagSemitones, "pitch", "s", 0, "Pitch shift in semitones, negative is deeper (-12 to +12)")
	f.StringVar(&flagNormalize, "normalize", "peak", "Level correction after shifting: peak, loudness, none")
	f.Float64Var(&flagLoudness, "loudness-target", -16, "Target integrated loudness in LUFS for --normalize loudness")
	f.BoolVar(&flagStrict, "strict", false, "Reject pitch shifts outside -12..+12 instead of warning")
	f.StringVar(&flagQuality, "quality", "balanced", "Resampler quality: fast, balanced, best")
}

func runShift(cmd *cobra.Command, args []string) error {
	in := args[0]
	out := flagShiftOutput
	if out == "" {
		out = shiftedName(in)
	}
	opts, err := synthesizeOptions()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printBanner(w, "PITCH SHIFT")
	fmt.Fprintf(w, "Input: %s\n", in)
	fmt.Fprintf(w, "Pitch shift: %s\n", describePitch(flagSemitones))
	fmt.Fprintf(w, "Normalize: %s\n", opts.Normalize)
	fmt.Fprintln(w)

	r := newRenderer(w)
	opts.OnProgress = r.Handle

	report, err := pipeline.ShiftFile(cmd.Context(), in, out, flagSemitones, opts)
	r.Finish()
	if err != nil {
		fmt.Fprintln(w)
		printFailure(w, "", err)
		return errors.Join(errReported, err)
	}

	fmt.Fprintln(w)
	printReport(w, report)
	return nil
}

// shiftedName derives "voice_shifted.wav" from "voice.wav".
func shiftedName(in string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_shifted" + ext
}

func runVariations(cmd *cobra.Command, args []string) error {
	var (
		m   *batch.Manifest
		err error
	)
	if flagPreset != "" {
		m, err = batch.Preset(flagPreset)
	} else {
		m, err = batch.Load(flagManifest)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	title := "VOICE VARIATIONS"
	if flagPreset != "" {
		title = fmt.Sprintf("%s (%s)", title, flagPreset)
	}
	printBanner(w, title)
	fmt.Fprintln(w)

	summary, err := batch.Run(cmd.Context(), m, batch.Options{
		Text:      flagText,
		Input:     flagInput,
		OutputDir: flagOutputDir,
		ProviderConfig: tts.Config{
			OpenAIModel: flagOpenAIModel,
			Binary:      flagEngineBinary,
		},
		Logger: logger,
		OnResult: func(num, total int, r batch.Result) {
			printVariant(w, num, total, r)
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	printSummary(w, summary)
	if summary.Succeeded < summary.Total {
		return errors.Join(errReported, fmt.Errorf("%d of %d variations failed", summary.Total-summary.Succeeded, summary.Total))
	}
	return nil
}

func printVariant(w io.Writer, num, total int, r batch.Result) {
	label := r.Variant.Name
	if label == "" {
		label = r.Variant.Output
	}
	fmt.Fprintf(w, "[%d/%d] %s\n", num, total, label)
	switch {
	case r.Err != nil:
		printFail(w, "Failed: %v", r.Err)
	case !r.OK():
		printWarn(w, "Pitch shift failed, kept original audio: %s", r.Report.Output)
	default:
		printOK(w, "Saved: %s (%s)", r.Report.Output, progress.FormatSize(r.Report.Size))
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-32s %-6s %-4s %-9s %-10s %-10s %s\n",
		"FILE", "RATE", "CH", "DURATION", "PEAK", "LOUDNESS", "DOMINANT")

	var failed []error
	for _, path := range args {
		buf, _, err := audio.ReadFile(cmd.Context(), path)
		if err != nil {
			printFail(w, "%s: %v", path, err)
			failed = append(failed, err)
			continue
		}
		s, err := analysis.Summarize(buf)
		if err != nil {
			printFail(w, "%s: %v", path, err)
			failed = append(failed, err)
			continue
		}
		fmt.Fprintf(w, "%-32s %-6d %-4d %-9s %-10s %-10s %s\n",
			filepath.Base(path),
			s.SampleRate,
			s.Channels,
			progress.FormatDuration(s.Duration),
			formatLevel(s.PeakDBFS, "dBFS"),
			formatLevel(s.LoudnessLUFS, "LUFS"),
			formatHz(s.DominantFrequency),
		)
	}
	if len(failed) > 0 {
		return errors.Join(append([]error{errReported}, failed...)...)
	}
	return nil
}

func formatLevel(v float64, unit string) string {
	if math.IsInf(v, -1) {
		return "-inf " + unit
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

func formatHz(hz float64) string {
	if hz == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f Hz", hz)
}
