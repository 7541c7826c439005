package service

import (
	"context"
	"strings"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/config"
	"doc-chat-be/internal/dto"
	"doc-chat-be/internal/entity"
	"doc-chat-be/internal/pkg/logger"
	"doc-chat-be/internal/retriever"
	"doc-chat-be/internal/session"
	"doc-chat-be/pkg/llm"
)

const noContextAnswer = "I could not find anything relevant to that question in your uploaded documents. " +
	"Try rephrasing, or upload a document that covers the topic."

const truncationMarker = "\n[Context truncated...]"

type IChatService interface {
	Ask(ctx context.Context, sessionID string, req *dto.AskRequest) (*dto.AskResponse, error)
	AskFiles(ctx context.Context, sessionID string, req *dto.AskFileRequest) (*dto.AskResponse, error)
}

type chatService struct {
	registry   *session.Registry
	retrievers map[string]*retriever.Retriever
	llm        llm.Provider
	retrieval  config.RetrievalConfig
	limits     config.SessionConfig
	log        logger.ILogger
}

func NewChatService(
	registry *session.Registry,
	retrievers map[string]*retriever.Retriever,
	llmProvider llm.Provider,
	retrieval config.RetrievalConfig,
	limits config.SessionConfig,
	log logger.ILogger,
) IChatService {
	return &chatService{
		registry:   registry,
		retrievers: retrievers,
		llm:        llmProvider,
		retrieval:  retrieval,
		limits:     limits,
		log:        log,
	}
}

// Ask answers a question from the session's documents. A malformed question
// is rejected before the quota is touched; only a question that reaches
// retrieval counts against the session, and retrieval that comes back empty
// short-circuits without an LLM call.
func (s *chatService) Ask(ctx context.Context, sessionID string, req *dto.AskRequest) (*dto.AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperr.New(apperr.ErrInvalidQuery, "question must not be blank")
	}

	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	r, ok := s.retrievers[sess.Provider]
	if !ok {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "session provider %q no longer configured", sess.Provider)
	}

	asked, err := s.registry.RecordQuestion(sessionID)
	if err != nil {
		return nil, err
	}
	left := s.limits.MaxQuestionsPerSession - asked

	chunks, err := r.Retrieve(ctx, sessionID, question, s.retrieval.TopK, s.retrieval.FusionAlpha)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return &dto.AskResponse{
			Answer:         noContextAnswer,
			Sources:        []dto.SourceReference{},
			QuestionsAsked: asked,
			QuestionsLeft:  left,
		}, nil
	}

	return s.respond(ctx, sessionID, question, chunks, asked, left)
}

// AskFiles answers a question using only the caller-named uploads. Filenames
// the session does not hold simply contribute nothing, mirroring how an
// empty retrieval behaves.
func (s *chatService) AskFiles(ctx context.Context, sessionID string, req *dto.AskFileRequest) (*dto.AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperr.New(apperr.ErrInvalidQuery, "question must not be blank")
	}
	if len(req.Filenames) == 0 {
		return nil, apperr.New(apperr.ErrInvalidQuery, "at least one filename is required")
	}

	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	r, ok := s.retrievers[sess.Provider]
	if !ok {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "session provider %q no longer configured", sess.Provider)
	}

	asked, err := s.registry.RecordQuestion(sessionID)
	if err != nil {
		return nil, err
	}
	left := s.limits.MaxQuestionsPerSession - asked

	chunks, err := r.RetrieveWithin(ctx, sessionID, question, s.retrieval.TopK, s.retrieval.FusionAlpha, req.Filenames)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return &dto.AskResponse{
			Answer: "I could not find anything relevant to that question in the named files (" +
				strings.Join(req.Filenames, ", ") + "). Check that those files cover the topic.",
			Sources:        []dto.SourceReference{},
			QuestionsAsked: asked,
			QuestionsLeft:  left,
			FilesSearched:  req.Filenames,
		}, nil
	}

	resp, err := s.respond(ctx, sessionID, question, chunks, asked, left)
	if err != nil {
		return nil, err
	}
	resp.FilesSearched = req.Filenames
	return resp, nil
}

func (s *chatService) respond(ctx context.Context, sessionID, question string, chunks []entity.RetrievedChunk, asked, left int) (*dto.AskResponse, error) {
	prompt := s.buildPrompt(question, chunks)
	answer, err := s.llm.Generate(ctx, prompt, llm.WithTemperature(0.3))
	if err != nil {
		return nil, err
	}

	sources := make([]dto.SourceReference, 0, len(chunks))
	for _, ch := range chunks {
		sources = append(sources, dto.SourceReference{
			Filename:   ch.Filename,
			Page:       ch.Page,
			Paragraph:  ch.Paragraph,
			ChunkIndex: ch.Index,
			Score:      ch.FinalScore,
			Snippet:    snippet(ch.Text, 200),
		})
	}

	s.log.Info("chat", "question answered", map[string]interface{}{
		"session_id": sessionID,
		"sources":    len(sources),
		"asked":      asked,
	})

	return &dto.AskResponse{
		Answer:         answer,
		Sources:        sources,
		QuestionsAsked: asked,
		QuestionsLeft:  left,
	}, nil
}

// buildPrompt groups the retrieved chunks per file and caps the context at
// MaxContextLength runes, marking the cut so the model knows text is
// missing.
func (s *chatService) buildPrompt(question string, chunks []entity.RetrievedChunk) string {
	var context strings.Builder
	var lastFile string
	for _, ch := range chunks {
		if ch.Filename != lastFile {
			context.WriteString("[file: " + ch.Filename + "]\n")
			lastFile = ch.Filename
		}
		context.WriteString(ch.Text)
		context.WriteString("\n\n")
	}

	contextText := strings.TrimSpace(context.String())
	if runes := []rune(contextText); len(runes) > s.retrieval.MaxContextLength {
		contextText = string(runes[:s.retrieval.MaxContextLength]) + truncationMarker
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant that answers questions using only the user's uploaded documents.\n\n")
	b.WriteString("Context from uploaded documents:\n\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer using only the context above. If the context does not contain the answer, say so.")
	return b.String()
}

func snippet(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
