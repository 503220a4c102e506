package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TextIngester reads a plain text file, or stdin when source is "-".
type TextIngester struct {
	Stdin io.Reader
}

func (t *TextIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	if source == "-" {
		return t.ingestStdin()
	}
	if err := validateFile(source); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("could not read file %s: %w", source, err)
	}

	text := string(data)
	if len(text) == 0 {
		return nil, fmt.Errorf("file %s is empty", source)
	}

	return &Content{
		Text:      text,
		Title:     titleFromText(text, 80),
		Source:    filepath.Base(source),
		WordCount: wordCount(text),
	}, nil
}

func (t *TextIngester) ingestStdin() (*Content, error) {
	r := t.Stdin
	if r == nil {
		r = os.Stdin
	}
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize))
	if err != nil {
		return nil, fmt.Errorf("could not read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("stdin is empty")
	}
	text := string(data)
	return &Content{
		Text:      text,
		Title:     titleFromText(text, 80),
		Source:    "stdin",
		WordCount: wordCount(text),
	}, nil
}
