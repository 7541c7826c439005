package entity

import (
	"time"

	"github.com/google/uuid"
)

// TextBlock is one unit of extracted text with its position in the source
// file. Extraction itself happens outside the retrieval core; blocks arrive
// already cleaned.
type TextBlock struct {
	Text      string
	Page      int
	Paragraph int
}

// Document is a single uploaded file, owned exclusively by one session.
type Document struct {
	Id         uuid.UUID
	SessionId  string
	Filename   string
	ByteSize   int64
	PageCount  int
	BlockCount int
	ChunkCount int
	UploadedAt time.Time
}
