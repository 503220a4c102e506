package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/apresai/voicekit/internal/observability"
	"github.com/apresai/voicekit/internal/pipeline"
	"github.com/apresai/voicekit/internal/pitch"
	"github.com/apresai/voicekit/internal/progress"
	"github.com/apresai/voicekit/internal/tts"
)

var Version = "dev"

// defaultText is spoken when neither --text nor --input is given.
const defaultText = "Halo, ini adalah tes suara setelah perbaikan kode."

// errReported marks failures whose details were already printed.
var errReported = errors.New("command failed")

var (
	logger           *slog.Logger
	shutdownTracing  = func(context.Context) error { return nil }
	flagVerbose      bool
	flagText         string
	flagInput        string
	flagOutput       string
	flagProvider     string
	flagLang         string
	flagTLD          string
	flagSlow         bool
	flagVoice        string
	flagRate         float64
	flagVolume       float64
	flagNativePitch  float64
	flagSemitones    float64
	flagNormalize    string
	flagLoudness     float64
	flagStrict       bool
	flagQuality      string
	flagOpenAIModel  string
	flagEngineBinary string

	flagVoicesProvider string
)

var rootCmd = &cobra.Command{
	Use:           "voicekit",
	Short:         "Text-to-speech with duration-preserving pitch shifting",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = observability.InitLogger(observability.LevelFor(flagVerbose))
		slog.SetDefault(logger)

		shutdown, err := observability.SetupTracing(cmd.Context(), "voicekit", Version)
		if err != nil {
			logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
			return nil
		}
		shutdownTracing = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Tracer shutdown error", "error", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return cmd.Help()
		}
		if err := runInteractiveSetup(); err != nil {
			return err
		}
		return runSynthesize(cmd, nil)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "voicekit %s\n", Version)
	},
}

var synthesizeCmd = &cobra.Command{
	Use:     "synthesize [text]",
	Aliases: []string{"say"},
	Short:   "Synthesize speech and optionally shift its pitch",
	Example: `  voicekit synthesize --text "Halo, apa kabar?" --pitch -7 -o halo.mp3
  voicekit say --provider espeak --lang en "Good morning" -o morning.wav
  voicekit synthesize --input article.pdf --provider polly --voice Matthew`,
	RunE: runSynthesize,
}

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices",
	Short: "List available voices for the TTS providers",
	RunE:  runListVoices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(synthesizeCmd)
	rootCmd.AddCommand(listVoicesCmd)

	f := synthesizeCmd.Flags()
	f.StringVarP(&flagText, "text", "t", "", "Text to speak (default: a short Indonesian test sentence)")
	f.StringVarP(&flagInput, "input", "i", "", "Read the text from a file, PDF, URL, or - for stdin")
	f.StringVarP(&flagOutput, "output", "o", "output.mp3", "Output file (.mp3 or .wav)")
	f.StringVarP(&flagProvider, "provider", "p", envOr("DEFAULT_PROVIDER", "gtts"), "TTS provider: "+strings.Join(tts.Names(), ", "))
	f.StringVarP(&flagLang, "lang", "l", "id", "Language code, e.g. id, en, es")
	f.StringVar(&flagTLD, "tld", "co.id", "Accent domain for gtts: co.id, com, co.uk, com.au")
	f.BoolVar(&flagSlow, "slow", false, "Speak slowly")
	f.StringVar(&flagVoice, "voice", "", "Provider voice ID (see list-voices)")
	f.Float64Var(&flagRate, "rate", 0, "Speaking rate multiplier, 1.0 is normal")
	f.Float64Var(&flagVolume, "volume", 0, "Volume: gain in dB for cloud engines, 0-1 amplitude for espeak")
	f.Float64Var(&flagNativePitch, "native-pitch", 0, "Engine-side pitch in semitones (google, espeak, edge-tts)")
	f.StringVar(&flagOpenAIModel, "openai-model", "", "OpenAI speech model (default gpt-4o-mini-tts)")
	f.StringVar(&flagEngineBinary, "engine-binary", "", "Path to the espeak or edge-tts executable")
	addPitchFlags(f)

	listVoicesCmd.Flags().StringVarP(&flagVoicesProvider, "provider", "p", "", "Only list this provider's voices")
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	if flagText == "" && len(args) > 0 {
		flagText = strings.Join(args, " ")
	}
	if flagText != "" && flagInput != "" {
		return fmt.Errorf("--text and --input are mutually exclusive")
	}
	if flagText == "" && flagInput == "" {
		flagText = defaultText
	}
	opts, err := synthesizeOptions()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printBanner(out, "TEXT-TO-SPEECH with "+providerLabel(opts.Provider))
	fmt.Fprintf(out, "Provider: %s\n", opts.Provider)
	fmt.Fprintf(out, "Language (lang): %s\n", opts.Language)
	if opts.Provider == "gtts" {
		fmt.Fprintf(out, "Accent (tld): %s\n", opts.Accent)
	}
	fmt.Fprintf(out, "Speed: %s\n", speedLabel(opts.Slow, opts.Speed))
	fmt.Fprintf(out, "Pitch shift: %s\n", describePitch(opts.Semitones))
	if opts.Text != "" {
		fmt.Fprintf(out, "Text: %s\n", opts.Text)
	} else {
		fmt.Fprintf(out, "Input: %s\n", opts.Input)
	}
	fmt.Fprintln(out)

	r := newRenderer(out)
	opts.OnProgress = r.Handle

	report, err := pipeline.Run(cmd.Context(), opts)
	r.Finish()
	if err != nil {
		fmt.Fprintln(out)
		printFailure(out, opts.Provider, err)
		return errors.Join(errReported, err)
	}

	fmt.Fprintln(out)
	printReport(out, report)
	return nil
}

// synthesizeOptions turns the flag values into pipeline options.
func synthesizeOptions() (pipeline.Options, error) {
	mode, err := pitch.ParseNormalizeMode(flagNormalize)
	if err != nil {
		return pipeline.Options{}, err
	}
	quality, err := pitch.ParseQuality(flagQuality)
	if err != nil {
		return pipeline.Options{}, err
	}
	if flagRate < 0 {
		return pipeline.Options{}, fmt.Errorf("--rate must not be negative (got %.2f)", flagRate)
	}
	return pipeline.Options{
		Provider: flagProvider,
		ProviderConfig: tts.Config{
			OpenAIModel: flagOpenAIModel,
			Binary:      flagEngineBinary,
		},
		Text:           flagText,
		Input:          flagInput,
		Output:         flagOutput,
		Language:       flagLang,
		Accent:         flagTLD,
		Voice:          flagVoice,
		Slow:           flagSlow,
		Speed:          flagRate,
		NativePitch:    flagNativePitch,
		Volume:         flagVolume,
		Semitones:      flagSemitones,
		Normalize:      mode,
		LoudnessTarget: flagLoudness,
		StrictRange:    flagStrict,
		Quality:        quality,
		Logger:         logger,
	}, nil
}

func runListVoices(cmd *cobra.Command, args []string) error {
	names := tts.Names()
	if flagVoicesProvider != "" {
		names = []string{flagVoicesProvider}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nAvailable voices:")

	for _, name := range names {
		voices, err := tts.AvailableVoices(name)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n  %s\n", strings.ToUpper(providerLabel(name)))
		fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 50))
		fmt.Fprintf(out, "  %-28s %-12s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, v := range voices {
			def := ""
			if v.Default {
				def = " (default)"
			}
			fmt.Fprintf(out, "  %-28s %-12s %-8s %s%s\n", v.ID, v.Name, v.Gender, v.Description, def)
		}
	}
	fmt.Fprintln(out)
	return nil
}

func providerLabel(name string) string {
	for _, p := range tts.Providers() {
		if p.Name == name {
			return fmt.Sprintf("%s (%s)", p.Name, p.Kind)
		}
	}
	return name
}

func speedLabel(slow bool, rate float64) string {
	switch {
	case rate > 0 && rate != 1:
		return fmt.Sprintf("%.2fx", rate)
	case slow:
		return "Slow"
	default:
		return "Normal"
	}
}

func newRenderer(w io.Writer) *progress.BarRenderer {
	if f, ok := w.(*os.File); ok {
		return progress.NewBarRenderer(f)
	}
	return progress.NewPlainRenderer(w)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
