package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/voicekit/internal/audio"
	"github.com/apresai/voicekit/internal/observability"
	"github.com/apresai/voicekit/internal/pipeline"
	"github.com/apresai/voicekit/internal/pitch"
	"github.com/apresai/voicekit/internal/storage"
	"github.com/apresai/voicekit/internal/tts"
)

var tracer = otel.Tracer("voicekit-mcp")

// maxUploadBytes caps decoded shift_pitch input.
const maxUploadBytes = 50 << 20

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "synthesize_speech",
			Description: "Convert text to speech, optionally shifting the pitch of the result up or down in semitones. Returns where the audio file was stored.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "Text to speak",
					},
					"provider": map[string]any{
						"type":        "string",
						"description": "TTS engine: gtts, google, polly, openai, espeak, edge-tts",
					},
					"language": map[string]any{
						"type":        "string",
						"description": "Language code, e.g. id, en, en-GB",
					},
					"accent": map[string]any{
						"type":        "string",
						"description": "Regional accent; for gtts the Google domain suffix such as co.id, com, co.uk",
					},
					"voice": map[string]any{
						"type":        "string",
						"description": "Provider-specific voice ID (see list_voices)",
					},
					"slow": map[string]any{
						"type":        "boolean",
						"description": "Speak slowly",
						"default":     false,
					},
					"speed": map[string]any{
						"type":        "number",
						"description": "Speaking rate multiplier, 1.0 is normal",
					},
					"semitones": map[string]any{
						"type":        "number",
						"description": "Pitch shift in semitones; negative is deeper, positive is higher. -5 to +5 sounds natural",
						"default":     0,
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Output format: mp3 or wav",
						"default":     "mp3",
					},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "shift_pitch",
			Description: "Shift the pitch of an existing audio clip without changing its duration.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"audio_base64": map[string]any{
						"type":        "string",
						"description": "Base64-encoded audio (WAV or MP3)",
					},
					"semitones": map[string]any{
						"type":        "number",
						"description": "Pitch shift in semitones",
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Output format: mp3 or wav (default: same as input)",
					},
					"normalize": map[string]any{
						"type":        "string",
						"description": "Level normalization after the shift: peak, loudness or none",
						"default":     "peak",
					},
				},
				Required: []string{"audio_base64", "semitones"},
			},
		},
		{
			Name:        "list_voices",
			Description: "List the voices of one TTS provider, or of all providers when none is given.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"provider": map[string]any{
						"type":        "string",
						"description": "Provider name (optional)",
					},
				},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	store           storage.Store
	defaultProvider string
	providerConfig  tts.Config
	log             *slog.Logger

	// newProvider is swapped in tests.
	newProvider func(name string, cfg tts.Config) (tts.Provider, error)
}

// NewHandlers creates tool handlers.
func NewHandlers(store storage.Store, defaultProvider string, logger *slog.Logger) *Handlers {
	if defaultProvider == "" {
		defaultProvider = "gtts"
	}
	return &Handlers{
		store:           store,
		defaultProvider: defaultProvider,
		newProvider:     tts.NewProvider,
		log:             logger,
	}
}

// HandleSynthesizeSpeech synthesizes text, applies the pitch shift and
// stores the result.
func (h *Handlers) HandleSynthesizeSpeech(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.synthesize_speech")
	defer span.End()

	text := mcp.ParseString(req, "text", "")
	providerName := mcp.ParseString(req, "provider", h.defaultProvider)
	semitones := mcp.ParseFloat64(req, "semitones", 0)
	format := audio.ParseFormat(mcp.ParseString(req, "format", "mp3"))

	span.SetAttributes(
		attribute.String("provider", providerName),
		attribute.Float64("semitones", semitones),
		attribute.String("format", string(format)),
		attribute.Int("text_chars", len(text)),
	)

	if text == "" {
		span.SetStatus(codes.Error, "missing text")
		return mcp.NewToolResultError("text is required"), nil
	}
	if format != audio.FormatMP3 && format != audio.FormatWAV {
		span.SetStatus(codes.Error, "bad format")
		return mcp.NewToolResultError("format must be mp3 or wav"), nil
	}
	if math.IsNaN(semitones) || math.IsInf(semitones, 0) {
		span.SetStatus(codes.Error, "bad semitones")
		return mcp.NewToolResultError("semitones must be a finite number"), nil
	}

	provider, err := h.newProvider(providerName, h.providerConfig)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider unavailable")
		return mcp.NewToolResultError(fmt.Sprintf("provider unavailable: %v", err)), nil
	}
	defer provider.Close()

	workDir, err := os.MkdirTemp("", "voicekit-mcp-*")
	if err != nil {
		span.RecordError(err)
		return mcp.NewToolResultError(fmt.Sprintf("create work dir: %v", err)), nil
	}
	defer os.RemoveAll(workDir)

	report, err := pipeline.Run(ctx, pipeline.Options{
		Synthesizer: provider,
		Text:        text,
		Output:      filepath.Join(workDir, "speech"+format.Ext()),
		Language:    mcp.ParseString(req, "language", ""),
		Accent:      mcp.ParseString(req, "accent", ""),
		Voice:       mcp.ParseString(req, "voice", ""),
		Slow:        mcp.ParseBoolean(req, "slow", false),
		Speed:       mcp.ParseFloat64(req, "speed", 0),
		Semitones:   semitones,
		Logger:      h.log,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return mcp.NewToolResultError(fmt.Sprintf("synthesis failed: %v", err)), nil
	}

	result, err := h.save(ctx, report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to store audio: %v", err)), nil
	}
	result["provider"] = report.Provider
	result["words"] = report.WordCount

	span.SetAttributes(attribute.String("pitch_status", string(report.PitchStatus)), attribute.Int64("size_bytes", report.Size))
	span.SetStatus(codes.Ok, "complete")
	h.log.InfoContext(ctx, "Speech synthesized", "id", result["id"], "provider", report.Provider, "pitch_status", report.PitchStatus)
	return jsonResult(result)
}

// HandleShiftPitch shifts an uploaded clip and stores the result.
func (h *Handlers) HandleShiftPitch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.shift_pitch")
	defer span.End()

	encoded := mcp.ParseString(req, "audio_base64", "")
	semitones := mcp.ParseFloat64(req, "semitones", math.NaN())
	span.SetAttributes(attribute.Float64("semitones", semitones), attribute.Int("input_chars", len(encoded)))

	if encoded == "" {
		span.SetStatus(codes.Error, "missing audio")
		return mcp.NewToolResultError("audio_base64 is required"), nil
	}
	if math.IsNaN(semitones) || math.IsInf(semitones, 0) {
		span.SetStatus(codes.Error, "bad semitones")
		return mcp.NewToolResultError("semitones is required and must be a finite number"), nil
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxUploadBytes {
		span.SetStatus(codes.Error, "too large")
		return mcp.NewToolResultError(fmt.Sprintf("audio exceeds %d MB", maxUploadBytes>>20)), nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		span.SetStatus(codes.Error, "bad base64")
		return mcp.NewToolResultError(fmt.Sprintf("audio_base64 is not valid base64: %v", err)), nil
	}
	mode, err := pitch.ParseNormalizeMode(mcp.ParseString(req, "normalize", ""))
	if err != nil {
		span.SetStatus(codes.Error, "bad normalize")
		return mcp.NewToolResultError(err.Error()), nil
	}

	inFormat := audio.DetectFormat(data, "")
	if inFormat == audio.FormatUnknown {
		span.SetStatus(codes.Error, "unknown format")
		return mcp.NewToolResultError("audio format not recognized; send WAV or MP3"), nil
	}
	outFormat := inFormat
	if f := mcp.ParseString(req, "format", ""); f != "" {
		outFormat = audio.ParseFormat(f)
	}
	if outFormat != audio.FormatMP3 && outFormat != audio.FormatWAV {
		span.SetStatus(codes.Error, "bad format")
		return mcp.NewToolResultError("output format must be mp3 or wav"), nil
	}

	workDir, err := os.MkdirTemp("", "voicekit-mcp-*")
	if err != nil {
		span.RecordError(err)
		return mcp.NewToolResultError(fmt.Sprintf("create work dir: %v", err)), nil
	}
	defer os.RemoveAll(workDir)

	in := filepath.Join(workDir, "input"+inFormat.Ext())
	if err := os.WriteFile(in, data, 0o644); err != nil {
		span.RecordError(err)
		return mcp.NewToolResultError(fmt.Sprintf("write input: %v", err)), nil
	}

	report, err := pipeline.ShiftFile(ctx, in, filepath.Join(workDir, "shifted"+outFormat.Ext()), semitones, pipeline.Options{
		Normalize: mode,
		Logger:    h.log,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shift failed")
		return mcp.NewToolResultError(fmt.Sprintf("pitch shift failed: %v", err)), nil
	}

	result, err := h.save(ctx, report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to store audio: %v", err)), nil
	}
	result["gain"] = report.Gain

	span.SetStatus(codes.Ok, "complete")
	return jsonResult(result)
}

// HandleListVoices returns the voice catalog.
func (h *Handlers) HandleListVoices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.list_voices")
	defer span.End()

	names := tts.Names()
	if p := mcp.ParseString(req, "provider", ""); p != "" {
		names = []string{p}
	}
	span.SetAttributes(attribute.StringSlice("providers", names))

	catalog := make(map[string][]tts.VoiceInfo, len(names))
	count := 0
	for _, name := range names {
		voices, err := tts.AvailableVoices(name)
		if err != nil {
			span.SetStatus(codes.Error, "unknown provider")
			return mcp.NewToolResultError(err.Error()), nil
		}
		catalog[name] = voices
		count += len(voices)
	}

	return jsonResult(map[string]any{
		"providers": catalog,
		"count":     count,
	})
}

// save stores the report's output file and describes it.
func (h *Handlers) save(ctx context.Context, report *pipeline.Report) (map[string]any, error) {
	key := storage.NewKey("audio", string(report.Format))
	location, err := h.store.Save(observability.DetachTraceContext(ctx), key, report.Output, report.Format.ContentType())
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"id":               key,
		"location":         location,
		"format":           report.Format,
		"size_bytes":       report.Size,
		"duration_seconds": math.Round(report.Duration.Seconds()*100) / 100,
		"semitones":        report.Semitones,
		"pitch_status":     report.PitchStatus,
	}
	if report.PitchErr != nil {
		result["pitch_error"] = report.PitchErr.Error()
	}
	if len(report.Warnings) > 0 {
		result["warnings"] = report.Warnings
	}
	return result, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
