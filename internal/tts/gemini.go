package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/apresai/voicekit/internal/audio"
)

const (
	geminiDefaultVoice = "Kore"

	geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash-preview-tts:generateContent"

	// Gemini speech is raw signed 16-bit little-endian mono PCM.
	geminiSampleRate = 24000
)

// geminiRequest is the top-level request to the Gemini generateContent TTS endpoint.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig  geminiVoiceConfig `json:"voiceConfig"`
	LanguageCode string            `json:"languageCode,omitempty"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *geminiInlineData `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded PCM
}

// GeminiProvider implements Provider using Gemini's speech generation
// model. The PCM it returns is wrapped in a WAV container.
type GeminiProvider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API_KEY is not set")
	}
	endpoint := geminiEndpoint
	if cfg.BaseURL != "" {
		endpoint = cfg.BaseURL
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) DefaultVoice() Voice {
	return Voice{ID: geminiDefaultVoice, Name: geminiDefaultVoice}
}

func (p *GeminiProvider) Synthesize(ctx context.Context, req Request) (AudioResult, error) {
	if err := checkText(p.Name(), req.Text); err != nil {
		return AudioResult{}, err
	}

	voice := voiceOrDefault(req.Voice, p)
	body := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: geminiPrompt(req)}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechConfig{
				VoiceConfig: geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: voice.ID},
				},
				LanguageCode: req.Language,
			},
		},
	}

	pcm, err := p.doRequest(ctx, body)
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "synthesize", Cause: err}
	}
	wav, err := pcmToWAV(ctx, pcm, geminiSampleRate)
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "wrap PCM", Cause: err}
	}
	return AudioResult{Data: wav, Format: FormatWAV}, nil
}

// geminiPrompt steers pacing with a style instruction; the model has no
// rate parameter.
func geminiPrompt(req Request) string {
	switch {
	case req.Speed > 1:
		return "Say quickly: " + req.Text
	case req.Slow || (req.Speed > 0 && req.Speed < 1):
		return "Say slowly and clearly: " + req.Text
	default:
		return req.Text
	}
}

func (p *GeminiProvider) doRequest(ctx context.Context, reqBody geminiRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal Gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send Gemini request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("Gemini API error (status %d): %s", res.StatusCode, string(errBody))
	}

	var resp geminiResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse Gemini response: %w", err)
	}

	if len(resp.Candidates) == 0 ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].InlineData == nil {
		return nil, fmt.Errorf("Gemini response contained no audio data")
	}

	inline := resp.Candidates[0].Content.Parts[0].InlineData
	if !strings.HasPrefix(inline.MimeType, "audio/") {
		return nil, fmt.Errorf("unexpected Gemini audio type %q", inline.MimeType)
	}
	audioBytes, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return nil, fmt.Errorf("decode Gemini audio base64: %w", err)
	}
	return audioBytes, nil
}

// pcmToWAV wraps 16-bit little-endian mono PCM in a WAV container.
func pcmToWAV(ctx context.Context, pcm []byte, sampleRate int) ([]byte, error) {
	frames := len(pcm) / 2
	if frames == 0 {
		return nil, fmt.Errorf("no PCM samples")
	}
	buf := audio.NewBuffer(sampleRate, 1, 16, frames)
	for i := range frames {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		buf.Samples[0][i] = float64(v) / 32768
	}
	return audio.Encode(ctx, buf, audio.FormatWAV)
}

func (p *GeminiProvider) Close() error { return nil }

func geminiAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice", Default: true},
		{ID: "Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator"},
		{ID: "Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice"},
		{ID: "Fenrir", Name: "Fenrir", Gender: "male", Description: "Excitable, deep male voice"},
		{ID: "Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice"},
		{ID: "Puck", Name: "Puck", Gender: "male", Description: "Upbeat, energetic male voice"},
		{ID: "Orus", Name: "Orus", Gender: "male", Description: "Firm, authoritative male narrator"},
		{ID: "Zephyr", Name: "Zephyr", Gender: "female", Description: "Breezy, relaxed female voice"},
	}
}
