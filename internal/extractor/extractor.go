// Package extractor turns uploaded files into ordered text blocks. The
// retrieval core only ever sees blocks; file formats stay behind this
// boundary.
package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/entity"
)

// Extractor produces the ordered text blocks of one file. Blocks carry the
// page and paragraph position used later for source attribution.
type Extractor interface {
	Supports(filename string) bool
	Extract(ctx context.Context, filename string, data []byte) ([]entity.TextBlock, error)
}

// PlainText handles .txt and .md files. One block per blank-line separated
// paragraph, all on page 1.
type PlainText struct{}

func NewPlainText() *PlainText {
	return &PlainText{}
}

func (p *PlainText) Supports(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return true
	}
	return false
}

func (p *PlainText) Extract(_ context.Context, filename string, data []byte) ([]entity.TextBlock, error) {
	if !p.Supports(filename) {
		return nil, apperr.Newf(apperr.ErrUnsupportedFileType, "%s (supported: .txt, .md)", filepath.Ext(filename))
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	var blocks []entity.TextBlock
	paragraph := 0
	for _, raw := range splitParagraphs(text) {
		cleaned := strings.TrimSpace(raw)
		if cleaned == "" {
			continue
		}
		paragraph++
		blocks = append(blocks, entity.TextBlock{
			Text:      cleaned,
			Page:      1,
			Paragraph: paragraph,
		})
	}
	return blocks, nil
}

// splitParagraphs cuts text at blank lines, treating whitespace-only lines
// as blank.
func splitParagraphs(text string) []string {
	var out []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}
