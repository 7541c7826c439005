// Package index stores chunk vectors partitioned by session and answers
// nearest-neighbor queries over a single session's vectors. Cross-session
// visibility is a correctness bug, not a tuning concern.
package index

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// Entry is one indexed chunk vector together with everything needed for
// source attribution and deterministic ordering.
type Entry struct {
	SessionId  string
	DocumentId uuid.UUID
	Filename   string
	ChunkIndex int
	Text       string
	Vector     []float32
	Start      int
	End        int
	Page       int
	Paragraph  int
	// UploadedAt is the owning document's upload time. Ties in similarity
	// break by earlier upload, then lower chunk index.
	UploadedAt time.Time
}

// ScoredEntry is a query hit with its cosine similarity.
type ScoredEntry struct {
	Entry
	Similarity float64
}

// VectorIndex is the per-session vector store. Upsert is all-or-nothing for
// the entries it is given; DeleteDocument and DeleteSession are atomic with
// respect to concurrent queries and idempotent for unknown targets.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []Entry) error
	DeleteDocument(ctx context.Context, sessionID string, documentID uuid.UUID) error
	DeleteSession(ctx context.Context, sessionID string) error
	// Query returns at most k entries ordered by descending cosine
	// similarity against the session's vectors only.
	Query(ctx context.Context, sessionID string, vector []float32, k int) ([]ScoredEntry, error)
	// SessionChunks returns every indexed chunk of the session, ordered by
	// (document upload time, chunk index).
	SessionChunks(ctx context.Context, sessionID string) ([]Entry, error)
	SessionFilenames(ctx context.Context, sessionID string) ([]string, error)
}

// Less orders query results: higher similarity first, then earlier document
// upload, then lower chunk index. Shared by both backends so ranking is
// deterministic regardless of storage engine.
func Less(a, b ScoredEntry) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if !a.UploadedAt.Equal(b.UploadedAt) {
		return a.UploadedAt.Before(b.UploadedAt)
	}
	return a.ChunkIndex < b.ChunkIndex
}

// Cosine is the cosine similarity of two vectors. Zero-norm operands score
// zero rather than NaN.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
