package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	elevenLabsDefaultVoice = "JBFqnCBsd6RMkjVDRZzb" // George

	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsModelID      = "eleven_flash_v2_5"
	elevenLabsOutputFormat = "mp3_44100_128"

	elevenLabsMinSpeed = 0.7
	elevenLabsMaxSpeed = 1.2
)

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	LanguageCode  string                 `json:"language_code,omitempty"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

// ElevenLabsProvider implements Provider using the ElevenLabs TTS API.
type ElevenLabsProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewElevenLabsProvider(cfg Config) (*ElevenLabsProvider, error) {
	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: ELEVENLABS_API_KEY is not set")
	}
	baseURL := elevenLabsBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &ElevenLabsProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) DefaultVoice() Voice {
	return Voice{ID: elevenLabsDefaultVoice, Name: "George"}
}

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, req Request) (AudioResult, error) {
	if err := checkText(p.Name(), req.Text); err != nil {
		return AudioResult{}, err
	}

	reqBody := elevenLabsRequest{
		Text:         req.Text,
		ModelID:      elevenLabsModelID,
		LanguageCode: baseLanguage(req.Language),
		VoiceSettings: &elevenLabsVoiceParams{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.0,
			UseSpeakerBoost: true,
			Speed:           elevenLabsSpeed(req),
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AudioResult{}, fmt.Errorf("marshal request: %w", err)
	}

	voice := voiceOrDefault(req.Voice, p)
	url := fmt.Sprintf("%s/%s?output_format=%s", p.baseURL, voice.ID, elevenLabsOutputFormat)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return AudioResult{}, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(httpReq)
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "send request", Cause: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return AudioResult{}, &SynthesisError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("API error (status %d): %s", res.StatusCode, string(errBody)),
		}
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "read response", Cause: err}
	}

	return AudioResult{Data: data, Format: FormatMP3}, nil
}

// elevenLabsSpeed maps the request onto the 0.7-1.2 range the API accepts.
func elevenLabsSpeed(req Request) float64 {
	speed := req.Speed
	if speed == 0 {
		speed = 1
		if req.Slow {
			speed = 0.8
		}
	}
	return min(max(speed, elevenLabsMinSpeed), elevenLabsMaxSpeed)
}

// baseLanguage strips the region: "id-ID" becomes "id".
func baseLanguage(lang string) string {
	lang, _, _ = strings.Cut(lang, "-")
	return strings.ToLower(lang)
}

func (p *ElevenLabsProvider) Close() error { return nil }

func elevenLabsAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George", Gender: "male", Description: "Warm British male, clear and authoritative", Default: true},
		{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah", Gender: "female", Description: "Soft American female, friendly and engaging"},
		{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Gender: "male", Description: "Deep American male, confident narrator"},
		{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Gender: "male", Description: "Young American male, conversational"},
		{ID: "MF3mGyEYCl7XYWbV9V6O", Name: "Elli", Gender: "female", Description: "Young American female, bright and expressive"},
		{ID: "TxGEqnHWrfWFTfGW9XjX", Name: "Josh", Gender: "male", Description: "Young American male, deep and smooth"},
		{ID: "onwK4e9ZLuTAKqWW03F9", Name: "Daniel", Gender: "male", Description: "British male, authoritative news anchor"},
		{ID: "pFZP5JQG7iQjIQuC4Bku", Name: "Lily", Gender: "female", Description: "British female, warm storyteller"},
	}
}
