// Package ingest resolves the text to be spoken from a literal string, a
// text file, a PDF or a web page.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

type SourceType string

const (
	SourceURL  SourceType = "url"
	SourcePDF  SourceType = "pdf"
	SourceText SourceType = "text"

	// maxInputSize is the maximum allowed size for input content (25 MB).
	maxInputSize = 25 * 1024 * 1024
)

func (s SourceType) String() string {
	return string(s)
}

type Content struct {
	Text      string
	Title     string
	Source    string
	WordCount int
}

type Ingester interface {
	Ingest(ctx context.Context, source string) (*Content, error)
}

// ErrNoInput is returned when neither literal text nor an input source is
// given.
var ErrNoInput = errors.New("no text or input source given")

func DetectSource(input string) SourceType {
	if input == "-" {
		return SourceText
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return SourceURL
	}
	if strings.HasSuffix(strings.ToLower(input), ".pdf") {
		return SourcePDF
	}
	return SourceText
}

func NewIngester(input string) Ingester {
	switch DetectSource(input) {
	case SourceURL:
		return &URLIngester{}
	case SourcePDF:
		return &PDFIngester{}
	default:
		return &TextIngester{}
	}
}

// Resolve returns literal text when it is non-empty, otherwise the content
// ingested from input. Whitespace is collapsed so engines do not read out
// layout artifacts.
func Resolve(ctx context.Context, text, input string) (*Content, error) {
	if strings.TrimSpace(text) != "" {
		return FromString(text, "command line"), nil
	}
	if input == "" {
		return nil, ErrNoInput
	}
	content, err := NewIngester(input).Ingest(ctx, input)
	if err != nil {
		return nil, err
	}
	content.Text = cleanSpeech(content.Text)
	if content.Text == "" {
		return nil, fmt.Errorf("%s contains no speakable text", content.Source)
	}
	return content, nil
}

// FromString wraps literal text as Content.
func FromString(text, source string) *Content {
	text = cleanSpeech(text)
	return &Content{
		Text:      text,
		Title:     titleFromText(text, 80),
		Source:    source,
		WordCount: wordCount(text),
	}
}

// cleanSpeech drops control characters and collapses runs of whitespace.
func cleanSpeech(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

func wordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}

func titleFromText(text string, maxLen int) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > maxLen {
		line = line[:maxLen] + "..."
	}
	if line == "" {
		return "Untitled"
	}
	return line
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s is too large (%d MB, max %d MB)", path, info.Size()/(1024*1024), maxInputSize/(1024*1024))
	}
	return nil
}
