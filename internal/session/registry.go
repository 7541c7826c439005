package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/config"
	"doc-chat-be/internal/entity"
	"doc-chat-be/internal/pkg/logger"
)

// Session is one ephemeral conversation scope. All of its documents and
// question counters live and die with it; nothing is shared across sessions.
type Session struct {
	Id           string
	Provider     string
	ModelID      string
	CreatedAt    time.Time
	LastActiveAt time.Time

	// mu serializes check-then-increment on quotas for this session only.
	// Distinct sessions never contend.
	mu        sync.Mutex
	documents map[string]entity.Document
	questions int
}

// PurgeFunc removes every vector belonging to a session, as a unit.
type PurgeFunc func(ctx context.Context, sessionID string) error

// Registry tracks live sessions with a TTL store. Expired sessions are
// reaped by the janitor sweep, and the eviction hook purges their vectors so
// a session's data never outlives the session itself.
type Registry struct {
	cache   *cache.Cache
	limits  config.SessionConfig
	timeout time.Duration
	purge   PurgeFunc
	log     logger.ILogger
}

func NewRegistry(limits config.SessionConfig, purge PurgeFunc, log logger.ILogger) *Registry {
	timeout := time.Duration(limits.TimeoutHours) * time.Hour
	c := cache.New(timeout, 10*time.Minute)

	r := &Registry{
		cache:   c,
		limits:  limits,
		timeout: timeout,
		purge:   purge,
		log:     log,
	}

	// Fires for both janitor-swept expiries and explicit deletes, so every
	// teardown path goes through one purge.
	c.OnEvicted(func(id string, _ interface{}) {
		if r.purge == nil {
			return
		}
		if err := r.purge(context.Background(), id); err != nil {
			r.log.Error("session", "failed to purge vectors of evicted session", map[string]interface{}{
				"session_id": id,
				"error":      err.Error(),
			})
			return
		}
		r.log.Info("session", "session evicted and purged", map[string]interface{}{
			"session_id": id,
		})
	})

	return r
}

// Create registers a new session bound to the embedding provider chosen at
// creation time. The binding is fixed for the session's lifetime so cached
// vectors stay comparable.
func (r *Registry) Create(provider, modelID string) *Session {
	now := time.Now()
	s := &Session{
		Id:           uuid.NewString(),
		Provider:     provider,
		ModelID:      modelID,
		CreatedAt:    now,
		LastActiveAt: now,
		documents:    make(map[string]entity.Document),
	}
	r.cache.Set(s.Id, s, cache.DefaultExpiration)

	r.log.Info("session", "session created", map[string]interface{}{
		"session_id": s.Id,
		"provider":   provider,
	})
	return s
}

// Get looks the session up, lazily expiring it first if its inactivity
// window has passed, so a stale session is gone the moment anything touches
// it rather than whenever the janitor next sweeps.
func (r *Registry) Get(sessionID string) (*Session, error) {
	if r.ExpireIfStale(sessionID, time.Now()) {
		return nil, apperr.Newf(apperr.ErrNotFound, "session %s", sessionID)
	}
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, apperr.Newf(apperr.ErrNotFound, "session %s", sessionID)
	}
	return x.(*Session), nil
}

// touch refreshes the TTL so an active session never expires mid-use.
func (r *Registry) touch(s *Session) {
	s.LastActiveAt = time.Now()
	r.cache.Set(s.Id, s, cache.DefaultExpiration)
}

// ExpireIfStale expires a session whose inactivity window has passed but
// which the janitor has not swept yet. Get runs it on every lookup; the
// explicit now parameter keeps the staleness decision testable. Returns
// true when it expired.
func (r *Registry) ExpireIfStale(sessionID string, now time.Time) bool {
	x, found := r.cache.Get(sessionID)
	if !found {
		return false
	}
	s := x.(*Session)

	s.mu.Lock()
	stale := now.Sub(s.LastActiveAt) >= r.timeout
	s.mu.Unlock()

	if stale {
		r.cache.Delete(sessionID)
	}
	return stale
}

// AddDocument records a document against the session's file quota. The quota
// check and the insert happen under the session mutex so concurrent uploads
// can never overshoot the limit.
func (r *Registry) AddDocument(sessionID string, doc entity.Document) error {
	s, err := r.Get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.Filename]; exists {
		return apperr.Newf(apperr.ErrDuplicateFile, "file %q already uploaded in this session", doc.Filename)
	}
	if len(s.documents) >= r.limits.MaxFilesPerSession {
		return apperr.Newf(apperr.ErrQuotaExceeded,
			"session file limit reached (%d)", r.limits.MaxFilesPerSession)
	}

	s.documents[doc.Filename] = doc
	r.touch(s)
	return nil
}

// RemoveDocument releases the document's quota slot and returns it so the
// caller can drop its vectors. Unknown filename is NotFound.
func (r *Registry) RemoveDocument(sessionID, filename string) (entity.Document, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return entity.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.documents[filename]
	if !exists {
		return entity.Document{}, apperr.Newf(apperr.ErrNotFound, "file %q not found in session", filename)
	}

	delete(s.documents, filename)
	r.touch(s)
	return doc, nil
}

// RecordQuestion counts one question against the session quota and returns
// the running total. On QuotaExceeded the counter is unchanged.
func (r *Registry) RecordQuestion(sessionID string) (int, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.questions >= r.limits.MaxQuestionsPerSession {
		return s.questions, apperr.Newf(apperr.ErrQuotaExceeded,
			"session question limit reached (%d)", r.limits.MaxQuestionsPerSession)
	}

	s.questions++
	r.touch(s)
	return s.questions, nil
}

// Documents lists the session's documents ordered by upload time.
func (r *Registry) Documents(sessionID string) ([]entity.Document, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]entity.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.Before(docs[j].UploadedAt)
		}
		return docs[i].Filename < docs[j].Filename
	})
	return docs, nil
}

// Questions returns how many questions the session has asked so far.
func (r *Registry) Questions(sessionID string) (int, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions, nil
}

// Clear removes the session. The eviction hook purges its vectors. Clearing
// an unknown session is a no-op.
func (r *Registry) Clear(sessionID string) {
	r.cache.Delete(sessionID)
}

// Count reports how many sessions are currently live.
func (r *Registry) Count() int {
	return r.cache.ItemCount()
}
