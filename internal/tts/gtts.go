package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	gttsDefaultLanguage = "id"
	gttsDefaultTLD      = "co.id"
	gttsRPCID           = "jQ1olc"
	gttsMaxChunk        = 100
	gttsUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var gttsAudioPattern = regexp.MustCompile(`jQ1olc","\[\\"(.*?)\\"]`)

// GTTSProvider implements Provider using the Google Translate speech
// endpoint. It needs no credentials; the accent is chosen by the Translate
// domain (co.id, com, co.uk, ...).
type GTTSProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewGTTSProvider(cfg Config) *GTTSProvider {
	return &GTTSProvider{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *GTTSProvider) Name() string { return "gtts" }

func (p *GTTSProvider) DefaultVoice() Voice {
	return Voice{ID: gttsDefaultLanguage, Name: "Indonesian (co.id)"}
}

func (p *GTTSProvider) Synthesize(ctx context.Context, req Request) (AudioResult, error) {
	if err := checkText(p.Name(), req.Text); err != nil {
		return AudioResult{}, err
	}

	lang := req.Language
	if lang == "" {
		lang = req.Voice.ID
	}
	if lang == "" {
		lang = gttsDefaultLanguage
	}
	tld := req.Accent
	if tld == "" {
		tld = gttsDefaultTLD
	}

	endpoint := p.baseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://translate.google.%s", tld)
	}
	endpoint = strings.TrimRight(endpoint, "/") + "/_/TranslateWebserverUi/data/batchexecute"

	var out bytes.Buffer
	for i, chunk := range splitText(req.Text, gttsMaxChunk) {
		data, err := p.synthesizeChunk(ctx, endpoint, tld, chunk, lang, req.Slow)
		if err != nil {
			return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: fmt.Sprintf("chunk %d", i+1), Cause: err}
		}
		out.Write(data)
	}
	if out.Len() == 0 {
		return AudioResult{}, &SynthesisError{Provider: p.Name(), Message: "no audio returned"}
	}
	return AudioResult{Data: out.Bytes(), Format: FormatMP3}, nil
}

func (p *GTTSProvider) synthesizeChunk(ctx context.Context, endpoint, tld, text, lang string, slow bool) ([]byte, error) {
	body, err := gttsPayload(text, lang, slow)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("Referer", fmt.Sprintf("https://translate.google.%s/", tld))
	req.Header.Set("User-Agent", gttsUserAgent)

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("Google Translate TTS error (status %d): %s", res.StatusCode, string(errBody))
	}

	return decodeGTTSResponse(res.Body)
}

// gttsPayload builds the form body for one batchexecute RPC call.
func gttsPayload(text, lang string, slow bool) (string, error) {
	var speed any
	if slow {
		speed = true
	}
	param, err := json.Marshal([]any{text, lang, speed, "null"})
	if err != nil {
		return "", fmt.Errorf("marshal rpc parameter: %w", err)
	}
	rpc, err := json.Marshal([][][]any{{{gttsRPCID, string(param), nil, "generic"}}})
	if err != nil {
		return "", fmt.Errorf("marshal rpc: %w", err)
	}
	return "f.req=" + url.QueryEscape(string(rpc)) + "&", nil
}

// decodeGTTSResponse extracts the base64 MP3 payload from the RPC response.
func decodeGTTSResponse(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var out []byte
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, gttsRPCID) {
			continue
		}
		m := gttsAudioPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(m[1])
		if err != nil {
			return nil, fmt.Errorf("decode audio payload: %w", err)
		}
		out = append(out, data...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no audio in response (unsupported language or text rejected)")
	}
	return out, nil
}

func (p *GTTSProvider) Close() error { return nil }

// splitText breaks text into chunks of at most limit runes, preferring
// sentence punctuation, then whitespace, as cut points.
func splitText(text string, limit int) []string {
	text = strings.Join(strings.Fields(text), " ")
	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= limit {
			chunks = append(chunks, text)
			break
		}

		cut := byteOffset(text, limit)
		window := text[:cut]
		split := strings.LastIndexFunc(window, func(r rune) bool {
			return strings.ContainsRune(".,;:!?。、", r)
		})
		if split >= 0 {
			_, size := utf8.DecodeRuneInString(window[split:])
			split += size
		} else {
			split = strings.LastIndexFunc(window, unicode.IsSpace)
		}
		if split <= 0 {
			split = cut
		}

		chunk := strings.TrimSpace(text[:split])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[split:])
	}
	return chunks
}

func byteOffset(s string, runes int) int {
	i := 0
	for pos := range s {
		if i == runes {
			return pos
		}
		i++
	}
	return len(s)
}

func gttsAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "id", Name: "Indonesian", Language: "id", Description: "Bahasa Indonesia (tld co.id)", Default: true},
		{ID: "en", Name: "English (US)", Language: "en", Description: "English, American accent (tld com)"},
		{ID: "en", Name: "English (UK)", Language: "en", Description: "English, British accent (tld co.uk)"},
		{ID: "en", Name: "English (Australia)", Language: "en", Description: "English, Australian accent (tld com.au)"},
		{ID: "ms", Name: "Malay", Language: "ms", Description: "Bahasa Melayu"},
		{ID: "jw", Name: "Javanese", Language: "jw", Description: "Basa Jawa"},
		{ID: "su", Name: "Sundanese", Language: "su", Description: "Basa Sunda"},
		{ID: "ja", Name: "Japanese", Language: "ja", Description: "日本語"},
	}
}
