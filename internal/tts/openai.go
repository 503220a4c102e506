package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openAIDefaultVoice = "alloy"
	openAIMinSpeed     = 0.25
	openAIMaxSpeed     = 4.0
)

// OpenAIProvider implements Provider using the OpenAI speech endpoint.
type OpenAIProvider struct {
	client oai.Client
	model  string
}

func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	apiKey := cfg.OpenAIAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: OPENAI_API_KEY is not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = string(oai.SpeechModelTTS1)
	}
	return &OpenAIProvider{client: oai.NewClient(opts...), model: model}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) DefaultVoice() Voice {
	return Voice{ID: openAIDefaultVoice, Name: "Alloy"}
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, req Request) (AudioResult, error) {
	if err := checkText(p.Name(), req.Text); err != nil {
		return AudioResult{}, err
	}

	voice := voiceOrDefault(req.Voice, p)
	params := oai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voice.ID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if speed := openAISpeed(req); speed != 1 {
		params.Speed = oai.Float(speed)
	}

	res, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "synthesize", Cause: err}
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

// openAISpeed clamps the requested speed to the range the API accepts.
func openAISpeed(req Request) float64 {
	speed := req.Speed
	if speed == 0 {
		speed = 1
		if req.Slow {
			speed = 0.75
		}
	}
	if speed < openAIMinSpeed {
		speed = openAIMinSpeed
	}
	if speed > openAIMaxSpeed {
		speed = openAIMaxSpeed
	}
	return speed
}

func (p *OpenAIProvider) Close() error { return nil }

func openAIAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "alloy", Name: "Alloy", Gender: "neutral", Description: "Balanced, versatile", Default: true},
		{ID: "echo", Name: "Echo", Gender: "male", Description: "Male, clear"},
		{ID: "fable", Name: "Fable", Gender: "male", Description: "British male, expressive"},
		{ID: "onyx", Name: "Onyx", Gender: "male", Description: "Deep male"},
		{ID: "nova", Name: "Nova", Gender: "female", Description: "Female, energetic"},
		{ID: "shimmer", Name: "Shimmer", Gender: "female", Description: "Soft female"},
	}
}
