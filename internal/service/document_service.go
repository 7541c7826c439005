package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/config"
	"doc-chat-be/internal/dto"
	"doc-chat-be/internal/entity"
	"doc-chat-be/internal/extractor"
	"doc-chat-be/internal/index"
	"doc-chat-be/internal/pkg/logger"
	"doc-chat-be/internal/session"
	"doc-chat-be/pkg/chunker"
	"doc-chat-be/pkg/embedding"
)

type IDocumentService interface {
	Upload(ctx context.Context, sessionID, filename string, data []byte) (*dto.UploadFileResponse, error)
	ListFiles(ctx context.Context, sessionID string) (*dto.ListFilesResponse, error)
	DeleteFile(ctx context.Context, sessionID, filename string) (*dto.DeleteFileResponse, error)
}

type documentService struct {
	registry  *session.Registry
	extractor extractor.Extractor
	chunker   *chunker.Chunker
	providers map[string]embedding.Provider
	index     index.VectorIndex
	limits    config.SessionConfig
	log       logger.ILogger
}

func NewDocumentService(
	registry *session.Registry,
	ext extractor.Extractor,
	chk *chunker.Chunker,
	providers map[string]embedding.Provider,
	idx index.VectorIndex,
	limits config.SessionConfig,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		registry:  registry,
		extractor: ext,
		chunker:   chk,
		providers: providers,
		index:     idx,
		limits:    limits,
		log:       log,
	}
}

// Upload runs the ingestion pipeline: extract, chunk, embed, index. The
// quota slot is reserved up front and released again if any later stage
// fails, so a failed upload leaves the session exactly as it was.
func (s *documentService) Upload(ctx context.Context, sessionID, filename string, data []byte) (*dto.UploadFileResponse, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	maxBytes := int64(s.limits.MaxFileSizeMB) * 1024 * 1024
	if int64(len(data)) > maxBytes {
		return nil, apperr.Newf(apperr.ErrFileTooLarge, "%s is %d bytes, limit is %d MB", filename, len(data), s.limits.MaxFileSizeMB)
	}

	provider, ok := s.providers[sess.Provider]
	if !ok {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "session provider %q no longer configured", sess.Provider)
	}

	blocks, err := s.extractor.Extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, apperr.Newf(apperr.ErrInvalidQuery, "%s contains no extractable text", filename)
	}

	chunks := s.chunker.ChunkDocument(blocks)
	if len(chunks) == 0 {
		return nil, apperr.Newf(apperr.ErrInvalidQuery, "%s produced no chunks", filename)
	}

	pages := 0
	for _, b := range blocks {
		if b.Page > pages {
			pages = b.Page
		}
	}

	doc := entity.Document{
		Id:         uuid.New(),
		SessionId:  sessionID,
		Filename:   filename,
		ByteSize:   int64(len(data)),
		PageCount:  pages,
		BlockCount: len(blocks),
		ChunkCount: len(chunks),
		UploadedAt: time.Now(),
	}

	// Reserve the quota slot before the expensive stages so concurrent
	// uploads cannot race past the file limit.
	if err := s.registry.AddDocument(sessionID, doc); err != nil {
		return nil, err
	}

	entries, err := s.embedChunks(ctx, provider, sess, doc, chunks)
	if err == nil {
		err = s.index.Upsert(ctx, entries)
	}
	if err != nil {
		// Roll back the reservation: a failed upload must not consume
		// quota or leave partial vectors behind.
		if _, rbErr := s.registry.RemoveDocument(sessionID, filename); rbErr != nil {
			s.log.Error("document", "rollback failed after ingestion error", map[string]interface{}{
				"session_id": sessionID,
				"filename":   filename,
				"error":      rbErr.Error(),
			})
		}
		if delErr := s.index.DeleteDocument(ctx, sessionID, doc.Id); delErr != nil {
			s.log.Error("document", "vector cleanup failed after ingestion error", map[string]interface{}{
				"session_id": sessionID,
				"filename":   filename,
				"error":      delErr.Error(),
			})
		}
		return nil, err
	}

	s.log.Info("document", "file ingested", map[string]interface{}{
		"session_id": sessionID,
		"filename":   filename,
		"chunks":     len(chunks),
		"bytes":      doc.ByteSize,
	})

	return &dto.UploadFileResponse{
		Id:         doc.Id,
		Filename:   doc.Filename,
		ByteSize:   doc.ByteSize,
		ChunkCount: doc.ChunkCount,
		UploadedAt: doc.UploadedAt,
	}, nil
}

func (s *documentService) embedChunks(ctx context.Context, provider embedding.Provider, sess *session.Session, doc entity.Document, chunks []entity.Chunk) ([]index.Entry, error) {
	entries := make([]index.Entry, 0, len(chunks))
	for _, ch := range chunks {
		vector, err := provider.Embed(ctx, ch.Text)
		if err != nil {
			return nil, err
		}
		entries = append(entries, index.Entry{
			SessionId:  sess.Id,
			DocumentId: doc.Id,
			Filename:   doc.Filename,
			ChunkIndex: ch.Index,
			Text:       ch.Text,
			Vector:     vector,
			Start:      ch.Start,
			End:        ch.End,
			Page:       ch.Page,
			Paragraph:  ch.Paragraph,
			UploadedAt: doc.UploadedAt,
		})
	}
	return entries, nil
}

// ListFiles reports the session's uploads with their chunk counts and the
// remaining quota headroom.
func (s *documentService) ListFiles(_ context.Context, sessionID string) (*dto.ListFilesResponse, error) {
	docs, err := s.registry.Documents(sessionID)
	if err != nil {
		return nil, err
	}

	files := make([]dto.SessionFileInfo, 0, len(docs))
	totalChunks := 0
	for _, doc := range docs {
		totalChunks += doc.ChunkCount
		files = append(files, dto.SessionFileInfo{
			Filename:   doc.Filename,
			ByteSize:   doc.ByteSize,
			PageCount:  doc.PageCount,
			ChunkCount: doc.ChunkCount,
			UploadedAt: doc.UploadedAt,
		})
	}

	asked, err := s.registry.Questions(sessionID)
	if err != nil {
		return nil, err
	}

	return &dto.ListFilesResponse{
		SessionId:      sessionID,
		Files:          files,
		TotalChunks:    totalChunks,
		FilesRemaining: s.limits.MaxFilesPerSession - len(docs),
		QuestionsAsked: asked,
		QuestionsLeft:  s.limits.MaxQuestionsPerSession - asked,
	}, nil
}

// DeleteFile removes one upload and its vectors. The vectors go first: the
// quota slot is released only once the index no longer serves the document,
// so a failed index delete leaves the session intact instead of freeing a
// slot for a file whose chunks are still queryable.
func (s *documentService) DeleteFile(ctx context.Context, sessionID, filename string) (*dto.DeleteFileResponse, error) {
	docs, err := s.registry.Documents(sessionID)
	if err != nil {
		return nil, err
	}
	var doc *entity.Document
	for i := range docs {
		if docs[i].Filename == filename {
			doc = &docs[i]
			break
		}
	}
	if doc == nil {
		return nil, apperr.Newf(apperr.ErrNotFound, "file %s not found in session", filename)
	}

	if err := s.index.DeleteDocument(ctx, sessionID, doc.Id); err != nil {
		return nil, err
	}
	if _, err := s.registry.RemoveDocument(sessionID, filename); err != nil {
		return nil, err
	}

	s.log.Info("document", "file removed", map[string]interface{}{
		"session_id": sessionID,
		"filename":   filename,
	})
	return &dto.DeleteFileResponse{
		Filename: filename,
		Deleted:  true,
	}, nil
}
