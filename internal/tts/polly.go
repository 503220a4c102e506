package tts

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

const (
	pollyDefaultVoice = "Joanna"
	pollySampleRate   = 24000
)

// pollyVoiceLang maps voice IDs to their language codes.
var pollyVoiceLang = map[string]types.LanguageCode{
	"Joanna":  types.LanguageCodeEnUs,
	"Matthew": types.LanguageCodeEnUs,
	"Ruth":    types.LanguageCodeEnUs,
	"Stephen": types.LanguageCodeEnUs,
	"Amy":     types.LanguageCodeEnGb,
	"Brian":   types.LanguageCodeEnGb,
	"Olivia":  types.LanguageCodeEnAu,
	"Kajal":   types.LanguageCodeEnIn,
}

// PollyProvider implements Provider using AWS Polly (Neural engine).
type PollyProvider struct {
	client *polly.Client
}

func NewPollyProvider() (*PollyProvider, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config for Polly: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return &PollyProvider{client: polly.NewFromConfig(awsCfg)}, nil
}

func (p *PollyProvider) Name() string { return "polly" }

func (p *PollyProvider) DefaultVoice() Voice {
	return Voice{ID: pollyDefaultVoice, Name: pollyDefaultVoice}
}

func (p *PollyProvider) Synthesize(ctx context.Context, req Request) (AudioResult, error) {
	if err := checkText(p.Name(), req.Text); err != nil {
		return AudioResult{}, err
	}

	resp, err := p.client.SynthesizeSpeech(ctx, pollyInput(req, voiceOrDefault(req.Voice, p)))
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "synthesize", Cause: err}
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "read audio", Cause: err}
	}
	return AudioResult{Data: data, Format: FormatMP3}, nil
}

func pollyInput(req Request, voice Voice) *polly.SynthesizeSpeechInput {
	lang, ok := pollyVoiceLang[voice.ID]
	if !ok {
		lang = types.LanguageCodeEnUs
	}
	if req.Language != "" && len(req.Language) == 5 {
		lang = types.LanguageCode(req.Language)
	}

	text := req.Text
	return &polly.SynthesizeSpeechInput{
		Engine:       types.EngineNeural,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   strPtr(strconv.Itoa(pollySampleRate)),
		Text:         &text,
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(voice.ID),
		LanguageCode: lang,
	}
}

func (p *PollyProvider) Close() error { return nil }

func strPtr(s string) *string { return &s }

func pollyAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Joanna", Name: "Joanna", Gender: "female", Language: "en-US", Description: "Neural", Default: true},
		{ID: "Matthew", Name: "Matthew", Gender: "male", Language: "en-US", Description: "Neural"},
		{ID: "Ruth", Name: "Ruth", Gender: "female", Language: "en-US", Description: "Neural"},
		{ID: "Stephen", Name: "Stephen", Gender: "male", Language: "en-US", Description: "Neural"},
		{ID: "Amy", Name: "Amy", Gender: "female", Language: "en-GB", Description: "Neural"},
		{ID: "Brian", Name: "Brian", Gender: "male", Language: "en-GB", Description: "Neural"},
		{ID: "Olivia", Name: "Olivia", Gender: "female", Language: "en-AU", Description: "Neural"},
		{ID: "Kajal", Name: "Kajal", Gender: "female", Language: "en-IN", Description: "Neural"},
	}
}
