package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadFileResponse struct {
	Id         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	ByteSize   int64     `json:"byte_size"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type SessionFileInfo struct {
	Filename   string    `json:"filename"`
	ByteSize   int64     `json:"byte_size"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ListFilesResponse is the per-session upload inventory with its quota
// headroom, on both the file and the question side.
type ListFilesResponse struct {
	SessionId      string            `json:"session_id"`
	Files          []SessionFileInfo `json:"files"`
	TotalChunks    int               `json:"total_chunks"`
	FilesRemaining int               `json:"files_remaining"`
	QuestionsAsked int               `json:"questions_asked"`
	QuestionsLeft  int               `json:"questions_left"`
}

type DeleteFileResponse struct {
	Filename string `json:"filename"`
	Deleted  bool   `json:"deleted"`
}
