package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

const (
	googleDefaultVoice    = "id-ID-Standard-A"
	googleDefaultLanguage = "id-ID"
)

// GoogleProvider implements Provider using Google Cloud TTS. It is the one
// engine with native prosody: rate, pitch and volume are applied server side.
type GoogleProvider struct {
	client *texttospeech.Client
}

func NewGoogleProvider() (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) DefaultVoice() Voice {
	return Voice{ID: googleDefaultVoice, Name: "Standard A"}
}

func (p *GoogleProvider) Synthesize(ctx context.Context, req Request) (AudioResult, error) {
	if err := checkText(p.Name(), req.Text); err != nil {
		return AudioResult{}, err
	}

	start := time.Now()
	voice := voiceOrDefault(req.Voice, p)
	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: googleLanguageCode(req.Language, voice.ID),
			Name:         voice.ID,
		},
		AudioConfig: googleAudioConfig(req),
	})
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "synthesize", Cause: err}
	}

	slog.DebugContext(ctx, "google tts done",
		"chars", len(req.Text),
		"bytes", len(resp.AudioContent),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return AudioResult{Data: resp.AudioContent, Format: FormatMP3}, nil
}

func googleAudioConfig(req Request) *texttospeechpb.AudioConfig {
	cfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	speed := req.Speed
	if req.Slow && speed == 0 {
		speed = 0.75
	}
	if speed != 0 {
		cfg.SpeakingRate = speed
	}
	if req.Pitch != 0 {
		cfg.Pitch = req.Pitch
	}
	if req.Volume != 0 {
		cfg.VolumeGainDb = req.Volume
	}
	return cfg
}

// googleLanguageCode picks the request language, or derives it from a voice
// name such as "id-ID-Wavenet-A".
func googleLanguageCode(lang, voiceID string) string {
	if strings.Contains(lang, "-") {
		return lang
	}
	parts := strings.SplitN(voiceID, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	if lang != "" {
		return lang
	}
	return googleDefaultLanguage
}

func (p *GoogleProvider) Close() error { return p.client.Close() }

func googleAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "id-ID-Standard-A", Name: "Standard A", Gender: "female", Language: "id-ID", Description: "Indonesian standard female", Default: true},
		{ID: "id-ID-Standard-B", Name: "Standard B", Gender: "male", Language: "id-ID", Description: "Indonesian standard male"},
		{ID: "id-ID-Standard-C", Name: "Standard C", Gender: "male", Language: "id-ID", Description: "Indonesian standard male, deeper"},
		{ID: "id-ID-Wavenet-A", Name: "Wavenet A", Gender: "female", Language: "id-ID", Description: "Indonesian WaveNet female"},
		{ID: "id-ID-Wavenet-B", Name: "Wavenet B", Gender: "male", Language: "id-ID", Description: "Indonesian WaveNet male"},
		{ID: "en-US-Chirp3-HD-Charon", Name: "Charon", Gender: "male", Language: "en-US", Description: "Informative, clear male narrator"},
		{ID: "en-US-Chirp3-HD-Leda", Name: "Leda", Gender: "female", Language: "en-US", Description: "Youthful, bright female voice"},
		{ID: "en-US-Chirp3-HD-Kore", Name: "Kore", Gender: "female", Language: "en-US", Description: "Firm, confident female voice"},
	}
}
