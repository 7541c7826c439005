package dto

type AskRequest struct {
	Question string `json:"question" validate:"required,min=1,max=2000"`
}

// AskFileRequest restricts retrieval to the named uploads.
type AskFileRequest struct {
	Question  string   `json:"question" validate:"required,min=1,max=2000"`
	Filenames []string `json:"filenames" validate:"required,min=1,dive,required"`
}

// SourceReference points an answer back to the chunk it came from.
type SourceReference struct {
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Paragraph  int     `json:"paragraph"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

type AskResponse struct {
	Answer         string            `json:"answer"`
	Sources        []SourceReference `json:"sources"`
	QuestionsAsked int               `json:"questions_asked"`
	QuestionsLeft  int               `json:"questions_left"`
	FilesSearched  []string          `json:"files_searched,omitempty"`
}
