// Package chunker splits extracted document text into overlapping chunks
// along semantic boundaries. Chunks are exact substrings of the input, so
// boundaries are stable for identical input and offsets can be cited.
package chunker

import (
	"sort"
	"strings"
	"unicode"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/entity"
)

type Chunker struct {
	chunkSize int
	overlap   int
}

// New validates the chunking configuration once. Overlap must be strictly
// smaller than the chunk size.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "chunk overlap (%d) must be smaller than chunk size (%d)", overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits text into overlapping chunks. Each chunk after the first
// starts `overlap` runes before the previous chunk's end. The cut point
// snaps back to the nearest paragraph or sentence boundary in the second
// half of the window; a hard character cut is the fallback when a single
// unit exceeds the chunk size.
func (c *Chunker) Chunk(text string) []entity.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)

	var chunks []entity.Chunk
	start := 0
	idx := 0
	for {
		end := start + c.chunkSize
		if end >= total {
			end = total
		} else {
			end = c.snap(runes, start, end)
		}

		chunks = append(chunks, entity.Chunk{
			Index: idx,
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		if end == total {
			break
		}

		idx++
		next := end - c.overlap
		if next <= start {
			// Guard against a snapped cut shorter than the overlap.
			next = start + 1
		}
		start = next
	}

	return chunks
}

// ChunkDocument chunks the concatenation of the extractor's text blocks and
// annotates every chunk with the page/paragraph of the block its start
// offset falls into.
func (c *Chunker) ChunkDocument(blocks []entity.TextBlock) []entity.Chunk {
	if len(blocks) == 0 {
		return nil
	}

	var sb strings.Builder
	starts := make([]int, len(blocks))
	offset := 0
	for i, block := range blocks {
		if i > 0 {
			sb.WriteString("\n\n")
			offset += 2
		}
		starts[i] = offset
		sb.WriteString(block.Text)
		offset += len([]rune(block.Text))
	}

	chunks := c.Chunk(sb.String())
	for i := range chunks {
		// Last block whose start offset is not past the chunk start.
		j := sort.Search(len(starts), func(k int) bool { return starts[k] > chunks[i].Start }) - 1
		if j < 0 {
			j = 0
		}
		chunks[i].Page = blocks[j].Page
		chunks[i].Paragraph = blocks[j].Paragraph
	}
	return chunks
}

// snap moves the tentative cut point back to the closest boundary in the
// second half of the window. Paragraph breaks win over sentence endings.
func (c *Chunker) snap(runes []rune, start, end int) int {
	floor := start + c.chunkSize/2
	if min := start + c.overlap + 1; floor < min {
		floor = min
	}
	if floor >= end {
		return end
	}

	// Paragraph break: cut after the newline run.
	for i := end - 1; i >= floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}

	// Sentence ending followed by whitespace: cut after the punctuation.
	for i := end - 1; i >= floor; i-- {
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
