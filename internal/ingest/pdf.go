package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// pageNumberLine matches running footers such as "3", "Page 3 of 10" or
// "Halaman 3/10".
var pageNumberLine = regexp.MustCompile(`(?i)^((page|halaman|hal\.?)\s*)?\d+(\s*(/|of|dari)\s*\d+)?$`)

// PDFIngester reads the text layer of a PDF, page by page. Pages without
// extractable text are skipped.
type PDFIngester struct{}

func (p *PDFIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	if err := validateFile(source); err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(source)
	if err != nil {
		return nil, fmt.Errorf("could not read PDF %s: %w", source, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		raw, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text := speakablePage(raw); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text layer in PDF %s: it may be scanned or image-based", source)
	}
	text := strings.Join(pages, "\n\n")

	return &Content{
		Text:      text,
		Title:     titleFromText(text, 80),
		Source:    filepath.Base(source),
		WordCount: wordCount(text),
	}, nil
}

// speakablePage drops page-number lines and rejoins words hyphenated across
// a line break, so neither is read aloud.
func speakablePage(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || pageNumberLine.MatchString(line) {
			continue
		}
		if n := len(lines); n > 0 && strings.HasSuffix(lines[n-1], "-") && startsLower(line) {
			lines[n-1] = strings.TrimSuffix(lines[n-1], "-") + line
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func startsLower(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLower(r)
}
