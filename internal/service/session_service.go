package service

import (
	"context"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/dto"
	"doc-chat-be/internal/pkg/logger"
	"doc-chat-be/internal/session"
	"doc-chat-be/pkg/embedding"
)

type ISessionService interface {
	Create(ctx context.Context, provider string) (*dto.CreateSessionResponse, error)
	Clear(ctx context.Context, sessionID string) (*dto.ClearSessionResponse, error)
}

type sessionService struct {
	registry        *session.Registry
	providers       map[string]embedding.Provider
	defaultProvider string
	log             logger.ILogger
}

func NewSessionService(
	registry *session.Registry,
	providers map[string]embedding.Provider,
	defaultProvider string,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		registry:        registry,
		providers:       providers,
		defaultProvider: defaultProvider,
		log:             log,
	}
}

// Create starts a session bound to one embedding provider. The choice is
// frozen at creation so every vector in the session comes from one model.
func (s *sessionService) Create(_ context.Context, provider string) (*dto.CreateSessionResponse, error) {
	if provider == "" {
		provider = s.defaultProvider
	}
	p, ok := s.providers[provider]
	if !ok {
		return nil, apperr.Newf(apperr.ErrInvalidQuery, "unknown embedding provider %q", provider)
	}

	sess := s.registry.Create(provider, p.ModelID())
	return &dto.CreateSessionResponse{
		SessionId: sess.Id,
		Provider:  sess.Provider,
		CreatedAt: sess.CreatedAt,
	}, nil
}

// Clear tears the session down. The registry's eviction hook drops the
// session's vectors, so clearing an unknown session is simply a no-op.
func (s *sessionService) Clear(_ context.Context, sessionID string) (*dto.ClearSessionResponse, error) {
	_, err := s.registry.Get(sessionID)
	cleared := err == nil
	if cleared {
		s.registry.Clear(sessionID)
	}
	return &dto.ClearSessionResponse{
		SessionId: sessionID,
		Cleared:   cleared,
	}, nil
}
