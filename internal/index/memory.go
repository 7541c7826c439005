package index

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryIndex is the default backend: brute-force cosine similarity over
// per-session vector sets. Mutations take the session's write lock, so a
// query observes a document either fully present or fully absent.
type MemoryIndex struct {
	mu       sync.RWMutex
	sessions map[string]*sessionVectors
}

type sessionVectors struct {
	mu   sync.RWMutex
	docs map[uuid.UUID][]Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		sessions: make(map[string]*sessionVectors),
	}
}

func (m *MemoryIndex) session(sessionID string, create bool) *sessionVectors {
	m.mu.RLock()
	s := m.sessions[sessionID]
	m.mu.RUnlock()
	if s != nil || !create {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s = m.sessions[sessionID]; s == nil {
		s = &sessionVectors{docs: make(map[uuid.UUID][]Entry)}
		m.sessions[sessionID] = s
	}
	return s
}

func (m *MemoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Entries are grouped per (session, document); replacing the document's
	// slice under the write lock keeps the upsert all-or-nothing.
	grouped := make(map[string]map[uuid.UUID][]Entry)
	for _, e := range entries {
		docs := grouped[e.SessionId]
		if docs == nil {
			docs = make(map[uuid.UUID][]Entry)
			grouped[e.SessionId] = docs
		}
		docs[e.DocumentId] = append(docs[e.DocumentId], e)
	}

	for sessionID, docs := range grouped {
		s := m.session(sessionID, true)
		s.mu.Lock()
		for docID, docEntries := range docs {
			sort.Slice(docEntries, func(i, j int) bool {
				return docEntries[i].ChunkIndex < docEntries[j].ChunkIndex
			})
			s.docs[docID] = docEntries
		}
		s.mu.Unlock()
	}
	return nil
}

func (m *MemoryIndex) DeleteDocument(ctx context.Context, sessionID string, documentID uuid.UUID) error {
	s := m.session(sessionID, false)
	if s == nil {
		return nil // idempotent
	}
	s.mu.Lock()
	delete(s.docs, documentID)
	s.mu.Unlock()
	return nil
}

func (m *MemoryIndex) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, sessionID string, vector []float32, k int) ([]ScoredEntry, error) {
	if k <= 0 {
		return nil, nil
	}
	s := m.session(sessionID, false)
	if s == nil {
		return nil, nil
	}

	s.mu.RLock()
	scored := make([]ScoredEntry, 0, 64)
	for _, docEntries := range s.docs {
		for _, e := range docEntries {
			scored = append(scored, ScoredEntry{
				Entry:      e,
				Similarity: Cosine(e.Vector, vector),
			})
		}
	}
	s.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool { return Less(scored[i], scored[j]) })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (m *MemoryIndex) SessionChunks(ctx context.Context, sessionID string) ([]Entry, error) {
	s := m.session(sessionID, false)
	if s == nil {
		return nil, nil
	}

	s.mu.RLock()
	entries := make([]Entry, 0, 64)
	for _, docEntries := range s.docs {
		entries = append(entries, docEntries...)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].UploadedAt.Equal(entries[j].UploadedAt) {
			return entries[i].UploadedAt.Before(entries[j].UploadedAt)
		}
		return entries[i].ChunkIndex < entries[j].ChunkIndex
	})
	return entries, nil
}

func (m *MemoryIndex) SessionFilenames(ctx context.Context, sessionID string) ([]string, error) {
	entries, err := m.SessionChunks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var names []string
	for _, e := range entries {
		if _, ok := seen[e.Filename]; ok {
			continue
		}
		seen[e.Filename] = struct{}{}
		names = append(names, e.Filename)
	}
	return names, nil
}

