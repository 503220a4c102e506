package tts

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

const (
	espeakDefaultVoice = "id"
	espeakDefaultWPM   = 150
	espeakMaxAmplitude = 200
)

// ESpeakProvider implements Provider with the offline eSpeak NG engine.
// Audio comes back as WAV on stdout.
type ESpeakProvider struct {
	binary string
}

// NewESpeakProvider looks for espeak-ng, then espeak, unless cfg names a
// binary explicitly.
func NewESpeakProvider(cfg Config) (*ESpeakProvider, error) {
	if cfg.Binary != "" {
		return &ESpeakProvider{binary: cfg.Binary}, nil
	}
	for _, name := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(name); err == nil {
			return &ESpeakProvider{binary: path}, nil
		}
	}
	return nil, fmt.Errorf("espeak: neither espeak-ng nor espeak found in PATH")
}

func (p *ESpeakProvider) Name() string { return "espeak" }

func (p *ESpeakProvider) DefaultVoice() Voice {
	return Voice{ID: espeakDefaultVoice, Name: "Indonesian"}
}

func (p *ESpeakProvider) Synthesize(ctx context.Context, req Request) (AudioResult, error) {
	if err := checkText(p.Name(), req.Text); err != nil {
		return AudioResult{}, err
	}

	cmd := exec.CommandContext(ctx, p.binary, espeakArgs(req, voiceOrDefault(req.Voice, p))...)
	cmd.Stdin = strings.NewReader(req.Text)
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return AudioResult{}, &SynthesisError{
			Provider: p.Name(),
			Message:  strings.TrimSpace(stderr.String()),
			Cause:    err,
		}
	}
	if stdout.Len() == 0 {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "no audio on stdout"}
	}
	return AudioResult{Data: stdout.Bytes(), Format: FormatWAV}, nil
}

// espeakArgs maps a Request onto espeak flags. Text is read from stdin.
func espeakArgs(req Request, voice Voice) []string {
	v := voice.ID
	if req.Voice.ID == "" && req.Language != "" {
		v = req.Language
	}

	wpm := espeakDefaultWPM
	if req.Speed > 0 {
		wpm = int(math.Round(espeakDefaultWPM * req.Speed))
	} else if req.Slow {
		wpm = espeakDefaultWPM * 3 / 4
	}

	args := []string{"--stdout", "-v", v, "-s", strconv.Itoa(wpm)}
	if req.Volume > 0 {
		amp := int(math.Round(req.Volume * 100))
		if amp > espeakMaxAmplitude {
			amp = espeakMaxAmplitude
		}
		args = append(args, "-a", strconv.Itoa(amp))
	}
	if req.Pitch != 0 {
		// espeak pitch is 0–99 with 50 as neutral; map ±12 semitones onto it.
		pitch := int(math.Round(50 + req.Pitch*50/12))
		pitch = min(max(pitch, 0), 99)
		args = append(args, "-p", strconv.Itoa(pitch))
	}
	return args
}

func (p *ESpeakProvider) Close() error { return nil }

func espeakAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "id", Name: "Indonesian", Language: "id", Description: "eSpeak NG Indonesian", Default: true},
		{ID: "ms", Name: "Malay", Language: "ms", Description: "eSpeak NG Malay"},
		{ID: "en-us", Name: "English (US)", Language: "en-US", Description: "eSpeak NG American English"},
		{ID: "en-gb", Name: "English (UK)", Language: "en-GB", Description: "eSpeak NG British English"},
		{ID: "id+f3", Name: "Indonesian (female)", Language: "id", Gender: "female", Description: "Indonesian with the f3 variant"},
		{ID: "id+m3", Name: "Indonesian (male)", Language: "id", Gender: "male", Description: "Indonesian with the m3 variant"},
	}
}
