package tts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AudioFormat represents the audio encoding returned by a provider.
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
	FormatWAV AudioFormat = "wav"
)

// Voice holds a provider-specific voice identifier.
type Voice struct {
	ID   string // Provider-specific voice identifier
	Name string // Human-readable label
}

// Request is one synthesis call. Zero values mean "provider default".
// Providers ignore settings they cannot express.
type Request struct {
	Text     string
	Language string // BCP-47 or ISO 639-1 language, e.g. "id" or "id-ID"
	Accent   string // regional variant; the Google Translate TLD for gtts
	Voice    Voice
	Slow     bool
	Speed    float64 // 1.0 = normal; espeak maps it onto words per minute
	Pitch    float64 // native pitch in semitones, for engines that have one
	Volume   float64 // gain in dB for cloud engines, 0–1 amplitude for espeak
}

// AudioResult is the output of a synthesis call.
type AudioResult struct {
	Data   []byte
	Format AudioFormat
}

// Provider synthesizes speech from text.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (AudioResult, error)
	DefaultVoice() Voice
	Close() error
}

// ErrEmptyText is returned when a request has nothing to say.
var ErrEmptyText = errors.New("text is empty")

// SynthesisError wraps a provider failure with the provider's name.
type SynthesisError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

// VoiceInfo describes an available voice for display in the registry.
type VoiceInfo struct {
	ID          string
	Name        string
	Gender      string // "male" or "female"
	Language    string
	Description string
	Default     bool
}

// Config carries the provider-level settings read from flags and env.
type Config struct {
	OpenAIAPIKey string
	OpenAIModel  string
	BaseURL      string // overrides the endpoint of HTTP-backed providers
	Binary       string // overrides the executable of CLI-backed providers
}

// ProviderInfo describes a provider for listings and the setup wizard.
type ProviderInfo struct {
	Name        string
	Kind        string
	Description string
}

var providers = []ProviderInfo{
	{Name: "gtts", Kind: "free cloud", Description: "Google Translate voice, many languages, accent via domain"},
	{Name: "google", Kind: "cloud", Description: "Google Cloud Text-to-Speech with native rate, pitch and volume"},
	{Name: "polly", Kind: "cloud", Description: "Amazon Polly neural voices"},
	{Name: "openai", Kind: "cloud", Description: "OpenAI speech voices with adjustable speed"},
	{Name: "espeak", Kind: "offline", Description: "eSpeak NG system voice, no network needed"},
	{Name: "edge-tts", Kind: "cli", Description: "Microsoft Edge neural voices through the edge-tts tool"},
	{Name: "elevenlabs", Kind: "cloud", Description: "ElevenLabs multilingual voices with adjustable speed"},
	{Name: "gemini", Kind: "cloud", Description: "Gemini speech generation, pacing steered by prompt"},
}

// Providers lists every provider NewProvider understands.
func Providers() []ProviderInfo {
	out := make([]ProviderInfo, len(providers))
	copy(out, providers)
	return out
}

// Names returns the provider names in display order.
func Names() []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	return names
}

// AvailableVoices returns the voice catalog for the named provider.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	var voices []VoiceInfo
	switch providerName {
	case "gtts":
		voices = gttsAvailableVoices()
	case "google":
		voices = googleAvailableVoices()
	case "polly":
		voices = pollyAvailableVoices()
	case "openai":
		voices = openAIAvailableVoices()
	case "espeak":
		voices = espeakAvailableVoices()
	case "edge-tts":
		voices = edgeAvailableVoices()
	case "elevenlabs":
		voices = elevenLabsAvailableVoices()
	case "gemini":
		voices = geminiAvailableVoices()
	default:
		return nil, unknownProvider(providerName)
	}
	sort.SliceStable(voices, func(i, j int) bool {
		return voices[i].Default && !voices[j].Default
	})
	return voices, nil
}

// NewProvider creates a TTS provider by name.
func NewProvider(name string, cfg Config) (Provider, error) {
	switch name {
	case "gtts":
		return NewGTTSProvider(cfg), nil
	case "google":
		return NewGoogleProvider()
	case "polly":
		return NewPollyProvider()
	case "openai":
		return NewOpenAIProvider(cfg)
	case "espeak":
		return NewESpeakProvider(cfg)
	case "edge-tts":
		return NewEdgeProvider(cfg)
	case "elevenlabs":
		return NewElevenLabsProvider(cfg)
	case "gemini":
		return NewGeminiProvider(cfg)
	default:
		return nil, unknownProvider(name)
	}
}

func unknownProvider(name string) error {
	return fmt.Errorf("unknown TTS provider %q: choose %s", name, strings.Join(Names(), ", "))
}

func checkText(provider, text string) error {
	if strings.TrimSpace(text) == "" {
		return &SynthesisError{Provider: provider, Message: "nothing to synthesize", Cause: ErrEmptyText}
	}
	return nil
}

// voiceOrDefault returns v when it names a voice, else the provider default.
func voiceOrDefault(v Voice, p Provider) Voice {
	if v.ID != "" {
		return v
	}
	return p.DefaultVoice()
}
