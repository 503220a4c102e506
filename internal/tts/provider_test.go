package tts

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableVoices(t *testing.T) {
	for _, name := range Names() {
		voices, err := AvailableVoices(name)
		require.NoError(t, err, name)
		require.NotEmpty(t, voices, name)
		assert.True(t, voices[0].Default, "%s: default voice must be listed first", name)
	}

	_, err := AvailableVoices("nope")
	assert.ErrorContains(t, err, "unknown TTS provider")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("festival", Config{})
	require.Error(t, err)
	for _, name := range Names() {
		assert.Contains(t, err.Error(), name)
	}
}

func TestNewProviderGTTS(t *testing.T) {
	p, err := NewProvider("gtts", Config{})
	require.NoError(t, err)
	assert.Equal(t, "gtts", p.Name())
	assert.Equal(t, "id", p.DefaultVoice().ID)
	assert.NoError(t, p.Close())
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"short", "Halo semua", []string{"Halo semua"}},
		{"collapses whitespace", "  Halo \n\t semua  ", []string{"Halo semua"}},
		{"empty", "   ", nil},
		{"punctuation", "Satu dua tiga. Empat lima enam.", []string{"Satu dua tiga.", "Empat lima enam."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit := 100
			if tt.name == "punctuation" {
				limit = 20
			}
			assert.Equal(t, tt.want, splitText(tt.text, limit))
		})
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	text := strings.Repeat("Selamat pagi semua orang yang ada di sini ", 20) + strings.Repeat("x", 250)
	chunks := splitText(text, gttsMaxChunk)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), gttsMaxChunk, c)
		assert.NotEmpty(t, c)
	}
	assert.Equal(t, strings.Join(strings.Fields(text), ""), strings.ReplaceAll(strings.Join(chunks, ""), " ", ""))
}

func TestGTTSPayload(t *testing.T) {
	body, err := gttsPayload("Halo", "id", true)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(body, "f.req="))

	raw, err := url.QueryUnescape(strings.TrimSuffix(strings.TrimPrefix(body, "f.req="), "&"))
	require.NoError(t, err)
	assert.Equal(t, `[[["jQ1olc","[\"Halo\",\"id\",true,\"null\"]",null,"generic"]]]`, raw)

	body, err = gttsPayload("Halo", "en", false)
	require.NoError(t, err)
	raw, err = url.QueryUnescape(strings.TrimSuffix(strings.TrimPrefix(body, "f.req="), "&"))
	require.NoError(t, err)
	assert.Contains(t, raw, `\"en\",null,`)
}

func gttsLine(payload []byte) string {
	return fmt.Sprintf(`[["wrb.fr","jQ1olc","[\"%s\"]",null,null,null,"generic"]]`, base64.StdEncoding.EncodeToString(payload))
}

func TestGTTSSynthesize(t *testing.T) {
	var (
		mu    sync.Mutex
		forms []url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_/TranslateWebserverUi/data/batchexecute", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(body))
		assert.NoError(t, err)

		mu.Lock()
		forms = append(forms, form)
		n := len(forms)
		mu.Unlock()

		fmt.Fprintf(w, ")]}'\n\n123\n%s\n25\n[[\"e\",4,null,null,123]]\n", gttsLine([]byte{byte(n), 0xFF, 0xFB}))
	}))
	defer srv.Close()

	p := NewGTTSProvider(Config{BaseURL: srv.URL})
	text := strings.Repeat("kata ", 30) + "akhir."
	res, err := p.Synthesize(context.Background(), Request{Text: text, Language: "id", Accent: "co.id", Slow: true})
	require.NoError(t, err)
	assert.Equal(t, FormatMP3, res.Format)

	require.Len(t, forms, 2)
	assert.Equal(t, []byte{1, 0xFF, 0xFB, 2, 0xFF, 0xFB}, res.Data, "chunks are concatenated in order")
	assert.Contains(t, forms[0].Get("f.req"), `true`)
}

func TestGTTSErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "fail") {
			http.Error(w, "blocked", http.StatusTooManyRequests)
			return
		}
		fmt.Fprintln(w, ")]}'")
		fmt.Fprintln(w, `[["wrb.fr","other",null]]`)
	}))
	defer srv.Close()

	p := NewGTTSProvider(Config{BaseURL: srv.URL})
	_, err := p.Synthesize(context.Background(), Request{Text: "Halo"})
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, "gtts", synthErr.Provider)
	assert.ErrorContains(t, err, "no audio in response")

	p = NewGTTSProvider(Config{BaseURL: srv.URL + "/?fail=1#"})
	_, err = p.Synthesize(context.Background(), Request{Text: "Halo"})
	assert.Error(t, err)

	_, err = p.Synthesize(context.Background(), Request{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestGoogleLanguageCode(t *testing.T) {
	assert.Equal(t, "id-ID", googleLanguageCode("", "id-ID-Wavenet-A"))
	assert.Equal(t, "en-GB", googleLanguageCode("en-GB", "id-ID-Wavenet-A"))
	assert.Equal(t, "en-US", googleLanguageCode("en", "en-US-Chirp3-HD-Leda"))
	assert.Equal(t, "id", googleLanguageCode("id", "custom"))
	assert.Equal(t, "id-ID", googleLanguageCode("", "custom"))
}

func TestGoogleAudioConfig(t *testing.T) {
	cfg := googleAudioConfig(Request{Speed: 1.2, Pitch: -4, Volume: 3})
	assert.Equal(t, 1.2, cfg.SpeakingRate)
	assert.Equal(t, -4.0, cfg.Pitch)
	assert.Equal(t, 3.0, cfg.VolumeGainDb)

	assert.Equal(t, 0.75, googleAudioConfig(Request{Slow: true}).SpeakingRate)
}

func TestPollyInput(t *testing.T) {
	in := pollyInput(Request{Text: "Hello"}, Voice{ID: "Amy"})
	assert.Equal(t, "en-GB", string(in.LanguageCode))
	assert.Equal(t, "Amy", string(in.VoiceId))
	assert.Equal(t, "24000", *in.SampleRate)

	in = pollyInput(Request{Text: "Hello", Language: "en-AU"}, Voice{ID: "Unknown"})
	assert.Equal(t, "en-AU", string(in.LanguageCode))
}

func TestOpenAISpeed(t *testing.T) {
	assert.Equal(t, 1.0, openAISpeed(Request{}))
	assert.Equal(t, 0.75, openAISpeed(Request{Slow: true}))
	assert.Equal(t, 0.25, openAISpeed(Request{Speed: 0.1}))
	assert.Equal(t, 4.0, openAISpeed(Request{Speed: 9}))
	assert.Equal(t, 1.5, openAISpeed(Request{Speed: 1.5, Slow: true}))
}

func TestNewOpenAIProviderNeedsKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIProvider(Config{})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	p, err := NewOpenAIProvider(Config{OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "alloy", p.DefaultVoice().ID)
}

func TestESpeakArgs(t *testing.T) {
	args := espeakArgs(Request{}, Voice{ID: "id"})
	assert.Equal(t, []string{"--stdout", "-v", "id", "-s", "150"}, args)

	args = espeakArgs(Request{Language: "en", Slow: true}, Voice{ID: "id"})
	assert.Equal(t, []string{"--stdout", "-v", "en", "-s", "112"}, args)

	args = espeakArgs(Request{Voice: Voice{ID: "id+f3"}, Speed: 1.2, Volume: 0.9, Pitch: 12}, Voice{ID: "id+f3"})
	assert.Equal(t, []string{"--stdout", "-v", "id+f3", "-s", "180", "-a", "90", "-p", "99"}, args)
}

func TestEdgeArgs(t *testing.T) {
	args := edgeArgs(Request{Text: "Halo"}, Voice{ID: "id-ID-GadisNeural"}, "/tmp/out.mp3")
	assert.Equal(t, []string{"--text=Halo", "--voice", "id-ID-GadisNeural", "--write-media", "/tmp/out.mp3"}, args)

	args = edgeArgs(Request{Text: "-5 derajat hari ini"}, Voice{ID: "v"}, "o.mp3")
	assert.Equal(t, "--text=-5 derajat hari ini", args[0], "text starting with a dash stays one argument")

	args = edgeArgs(Request{Text: "Halo", Slow: true, Pitch: 12, Volume: -6}, Voice{ID: "v"}, "o.mp3")
	assert.Contains(t, args, "--rate=-25%")
	assert.Contains(t, args, "--pitch=+200Hz")
	assert.Contains(t, args, "--volume=-50%")
}

func TestESpeakSynthesizeWithFakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "espeak-ng")
	script := "#!/bin/sh\ncat >/dev/null\nprintf 'RIFF----WAVE'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	p, err := NewESpeakProvider(Config{Binary: bin})
	require.NoError(t, err)
	res, err := p.Synthesize(context.Background(), Request{Text: "Halo"})
	require.NoError(t, err)
	assert.Equal(t, FormatWAV, res.Format)
	assert.Equal(t, "RIFF----WAVE", string(res.Data))

	failing := filepath.Join(dir, "espeak-fail")
	require.NoError(t, os.WriteFile(failing, []byte("#!/bin/sh\necho 'voice not found' >&2\nexit 1\n"), 0o755))
	p, err = NewESpeakProvider(Config{Binary: failing})
	require.NoError(t, err)
	_, err = p.Synthesize(context.Background(), Request{Text: "Halo"})
	assert.ErrorContains(t, err, "voice not found")
}

func TestElevenLabsSynthesize(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "xi-test")
	var got elevenLabsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/EXAVITQu4vr4xnSDxMaL", r.URL.Path)
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte{0xFF, 0xFB, 0x90})
	}))
	defer srv.Close()

	p, err := NewProvider("elevenlabs", Config{BaseURL: srv.URL})
	require.NoError(t, err)
	res, err := p.Synthesize(context.Background(), Request{
		Text:     "Halo",
		Language: "id-ID",
		Voice:    Voice{ID: "EXAVITQu4vr4xnSDxMaL"},
		Slow:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, FormatMP3, res.Format)
	assert.Equal(t, []byte{0xFF, 0xFB, 0x90}, res.Data)
	assert.Equal(t, "id", got.LanguageCode)
	assert.Equal(t, 0.8, got.VoiceSettings.Speed)
}

func TestElevenLabsErrors(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	_, err := NewProvider("elevenlabs", Config{})
	assert.ErrorContains(t, err, "ELEVENLABS_API_KEY")

	t.Setenv("ELEVENLABS_API_KEY", "xi-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewElevenLabsProvider(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Synthesize(context.Background(), Request{Text: "Halo"})
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Contains(t, synthErr.Message, "status 401")
	assert.Contains(t, synthErr.Message, "quota_exceeded")
}

func TestElevenLabsSpeed(t *testing.T) {
	assert.Equal(t, 1.0, elevenLabsSpeed(Request{}))
	assert.Equal(t, 0.7, elevenLabsSpeed(Request{Speed: 0.25}))
	assert.Equal(t, 1.2, elevenLabsSpeed(Request{Speed: 2}))
	assert.Equal(t, 1.1, elevenLabsSpeed(Request{Speed: 1.1, Slow: true}))
}

func TestGeminiSynthesizeWrapsPCM(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-test")
	pcm := make([]byte, 2*480)
	for i := range 480 {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(i*10)))
	}

	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "g-test", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=24000","data":%q}}]}}]}`,
			base64.StdEncoding.EncodeToString(pcm))
	}))
	defer srv.Close()

	p, err := NewProvider("gemini", Config{BaseURL: srv.URL})
	require.NoError(t, err)
	res, err := p.Synthesize(context.Background(), Request{Text: "Halo", Language: "id-ID", Slow: true})
	require.NoError(t, err)
	assert.Equal(t, FormatWAV, res.Format)
	assert.Equal(t, "RIFF", string(res.Data[:4]))
	assert.Equal(t, "Say slowly and clearly: Halo", got.Contents[0].Parts[0].Text)
	assert.Equal(t, "Kore", got.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	assert.Equal(t, "id-ID", got.GenerationConfig.SpeechConfig.LanguageCode)
}

func TestGeminiNoAudio(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Synthesize(context.Background(), Request{Text: "Halo"})
	assert.ErrorContains(t, err, "no audio data")
}
