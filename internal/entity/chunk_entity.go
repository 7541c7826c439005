package entity

import (
	"github.com/google/uuid"
)

// Chunk is a contiguous span of a document's text, the atomic unit of
// retrieval. Start/End are rune offsets into the source text, so chunks of
// one document overlap by exactly the configured overlap and concatenating
// the non-overlapping suffixes reconstructs the original text.
type Chunk struct {
	DocumentId uuid.UUID
	Index      int // 0-based, contiguous within the document
	Text       string
	Start      int
	End        int
	Page       int
	Paragraph  int
}

// RetrievedChunk is a chunk scored and attributed for the answer layer.
type RetrievedChunk struct {
	Chunk
	Filename     string
	VectorScore  float64
	KeywordScore float64
	FinalScore   float64
}
