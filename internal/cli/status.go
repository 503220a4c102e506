package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/voicekit/internal/audio"
	"github.com/apresai/voicekit/internal/batch"
	"github.com/apresai/voicekit/internal/pipeline"
	"github.com/apresai/voicekit/internal/pitch"
	"github.com/apresai/voicekit/internal/progress"
)

var (
	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F5A623")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))
)

func printBanner(w io.Writer, title string) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(w, bannerStyle.Render(rule))
	fmt.Fprintln(w, bannerStyle.Render(title))
	fmt.Fprintln(w, bannerStyle.Render(rule))
}

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", okStyle.Render("✓"), fmt.Sprintf(format, args...))
}

func printWarn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", warnStyle.Render("⚠"), fmt.Sprintf(format, args...))
}

func printFail(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", failStyle.Render("✗"), fmt.Sprintf(format, args...))
}

// describePitch renders a semitone offset the way the settings header
// shows it.
func describePitch(semitones float64) string {
	switch {
	case semitones < 0:
		return fmt.Sprintf("Lower (%g semitones)", semitones)
	case semitones > 0:
		return fmt.Sprintf("Higher (+%g semitones)", semitones)
	default:
		return "Normal"
	}
}

// printReport writes the pitch outcome. Size, duration and warnings are
// printed by the progress renderer.
func printReport(w io.Writer, r *pipeline.Report) {
	switch r.PitchStatus {
	case pitch.StatusShifted:
		printOK(w, "Pitch shifted %+g semitones", r.Semitones)
	case pitch.StatusFallback:
		printWarn(w, "Pitch shift failed, using original audio")
	}
	printOK(w, "File ready: %s", r.Output)
}

// printFailure writes the error, its kind and the troubleshooting steps for
// the provider.
func printFailure(w io.Writer, provider string, err error) {
	printFail(w, "ERROR: %v", err)
	fmt.Fprintf(w, "  Error type: %s\n", errorKind(err))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== TROUBLESHOOTING ===")
	for i, hint := range troubleshooting(provider, err) {
		fmt.Fprintf(w, "%d. %s\n", i+1, hint)
	}
}

func printSummary(w io.Writer, s *batch.Summary) {
	fmt.Fprintln(w, bannerStyle.Render(strings.Repeat("=", 50)))
	fmt.Fprintf(w, "Result: %s\n", s.String())
	fmt.Fprintln(w, bannerStyle.Render(strings.Repeat("=", 50)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Files created:")
	for _, r := range s.Results {
		if r.Report == nil {
			continue
		}
		fmt.Fprintf(w, "  - %s (%s) - %s\n", r.Report.Output, progress.FormatSize(r.Report.Size), r.Variant.Name)
	}
}

func errorKind(err error) string {
	var (
		pe     *pipeline.PipelineError
		decErr *audio.DecodeError
		encErr *audio.EncodeError
	)
	switch {
	case errors.Is(err, pitch.ErrUnsupportedParameter):
		return "UnsupportedParameter"
	case errors.As(err, &decErr):
		return "DecodeError"
	case errors.As(err, &encErr):
		return "EncodeError"
	case errors.As(err, &pe):
		return pe.Stage + " error"
	default:
		return fmt.Sprintf("%T", err)
	}
}

// troubleshooting lists the checks worth doing after a failure with the
// given engine.
func troubleshooting(provider string, err error) []string {
	var hints []string
	switch provider {
	case "gtts":
		hints = []string{
			"Make sure the internet connection is stable",
			"Check the --lang, --tld and --slow values",
			"Google may rate limit repeated requests; wait a minute and retry",
		}
	case "google":
		hints = []string{
			"Authenticate with: gcloud auth application-default login",
			"Or set GOOGLE_APPLICATION_CREDENTIALS to a service account key file",
			"Make sure the Cloud Text-to-Speech API is enabled for the project",
		}
	case "polly":
		hints = []string{
			"Configure AWS credentials (aws configure, or AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY)",
			"Set AWS_REGION to a region where Polly is available",
			"Check that the voice supports the neural engine",
		}
	case "openai":
		hints = []string{
			"Get an API key from https://platform.openai.com/api-keys",
			"Set it with: export OPENAI_API_KEY=sk-your-key",
			"Check the --voice value (voicekit list-voices --provider openai)",
		}
	case "espeak":
		hints = []string{
			"Install the engine: sudo apt-get install espeak-ng",
			"Check the voice with: espeak-ng --voices",
		}
	case "elevenlabs":
		hints = []string{
			"Set your API key with: export ELEVENLABS_API_KEY=your-key",
			"Check the character quota on your ElevenLabs plan",
			"Check the --voice value (voicekit list-voices --provider elevenlabs)",
		}
	case "gemini":
		hints = []string{
			"Get an API key from https://aistudio.google.com/apikey",
			"Set it with: export GEMINI_API_KEY=your-key",
		}
	case "edge-tts":
		hints = []string{
			"Install the tool: pip install edge-tts",
			"Make sure edge-tts is in PATH",
			"Make sure the internet connection is stable",
		}
	}

	if errors.Is(err, audio.ErrFFmpegMissing) {
		hints = append(hints, "Install FFmpeg for MP3 output: sudo apt-get install ffmpeg (or brew install ffmpeg)")
	}
	return append(hints, "Run again with --verbose for detailed logs")
}
