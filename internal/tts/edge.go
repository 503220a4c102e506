package tts

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	edgeDefaultVoice  = "id-ID-GadisNeural"
	edgeDefaultBinary = "edge-tts"
)

// EdgeProvider implements Provider by running the edge-tts command line
// tool, which writes MP3 to a file.
type EdgeProvider struct {
	binary string
}

func NewEdgeProvider(cfg Config) (*EdgeProvider, error) {
	bin := cfg.Binary
	if bin == "" {
		bin = edgeDefaultBinary
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("edge-tts: %s not found in PATH (pip install edge-tts)", bin)
	}
	return &EdgeProvider{binary: path}, nil
}

func (p *EdgeProvider) Name() string { return "edge-tts" }

func (p *EdgeProvider) DefaultVoice() Voice {
	return Voice{ID: edgeDefaultVoice, Name: "Gadis"}
}

func (p *EdgeProvider) Synthesize(ctx context.Context, req Request) (AudioResult, error) {
	if err := checkText(p.Name(), req.Text); err != nil {
		return AudioResult{}, err
	}

	tmpDir, err := os.MkdirTemp("", "voicekit-edge-*")
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "create temp directory", Cause: err}
	}
	defer os.RemoveAll(tmpDir)

	out := filepath.Join(tmpDir, "speech.mp3")
	cmd := exec.CommandContext(ctx, p.binary, edgeArgs(req, voiceOrDefault(req.Voice, p), out)...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return AudioResult{}, &SynthesisError{
			Provider: p.Name(),
			Message:  strings.TrimSpace(stderr.String()),
			Cause:    err,
		}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "read output", Cause: err}
	}
	if len(data) == 0 {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "output file is empty"}
	}
	return AudioResult{Data: data, Format: FormatMP3}, nil
}

// edgeArgs maps a Request onto edge-tts flags. Rate, volume and pitch use
// the tool's signed-percent and signed-Hz notation.
func edgeArgs(req Request, voice Voice, output string) []string {
	args := []string{"--text=" + req.Text, "--voice", voice.ID}

	speed := req.Speed
	if speed == 0 && req.Slow {
		speed = 0.75
	}
	if speed > 0 && speed != 1 {
		args = append(args, "--rate="+signed(int(math.Round((speed-1)*100)), "%"))
	}
	if req.Volume != 0 {
		// Volume is a dB gain; edge-tts wants a percentage change.
		pct := int(math.Round((math.Pow(10, req.Volume/20) - 1) * 100))
		args = append(args, "--volume="+signed(pct, "%"))
	}
	if req.Pitch != 0 {
		// Roughly 6% of a 200 Hz speaking voice per semitone.
		hz := int(math.Round(200 * (math.Pow(2, req.Pitch/12) - 1)))
		args = append(args, "--pitch="+signed(hz, "Hz"))
	}
	return append(args, "--write-media", output)
}

func signed(v int, unit string) string {
	if v >= 0 {
		return fmt.Sprintf("+%d%s", v, unit)
	}
	return fmt.Sprintf("%d%s", v, unit)
}

func (p *EdgeProvider) Close() error { return nil }

func edgeAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "id-ID-GadisNeural", Name: "Gadis", Gender: "female", Language: "id-ID", Description: "Indonesian neural female", Default: true},
		{ID: "id-ID-ArdiNeural", Name: "Ardi", Gender: "male", Language: "id-ID", Description: "Indonesian neural male"},
		{ID: "ms-MY-YasminNeural", Name: "Yasmin", Gender: "female", Language: "ms-MY", Description: "Malay neural female"},
		{ID: "en-US-AriaNeural", Name: "Aria", Gender: "female", Language: "en-US", Description: "American neural female"},
		{ID: "en-GB-RyanNeural", Name: "Ryan", Gender: "male", Language: "en-GB", Description: "British neural male"},
	}
}
