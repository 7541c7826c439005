// Package retriever ranks a session's chunks against a question by fusing
// dense vector similarity with lexical term overlap. Vector similarity finds
// paraphrases; keyword overlap catches exact names and rare terms the
// embedding may smooth over.
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/entity"
	"doc-chat-be/internal/index"
	"doc-chat-be/internal/pkg/logger"
	"doc-chat-be/pkg/embedding"
)

type Retriever struct {
	provider  embedding.Provider
	index     index.VectorIndex
	overfetch int
	log       logger.ILogger
}

// New wires a retriever over an embedding provider (normally the cache-backed
// one) and a vector index. overfetch widens the candidate pool beyond topK so
// fusion has lexical-only hits to promote.
func New(provider embedding.Provider, idx index.VectorIndex, overfetch int, log logger.ILogger) (*Retriever, error) {
	if overfetch < 2 {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "overfetch factor must be at least 2, got %d", overfetch)
	}
	return &Retriever{
		provider:  provider,
		index:     idx,
		overfetch: overfetch,
		log:       log,
	}, nil
}

type candidate struct {
	entry      index.Entry
	vecScore   float64
	kwScore    float64
	fusedScore float64
}

type chunkKey struct {
	document uuid.UUID
	chunk    int
}

// Retrieve returns the topK chunks of the session ranked by
// alpha*vector + (1-alpha)*keyword, both signals min-max normalized within
// the candidate pool. An empty session yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, queryText string, topK int, alpha float64) ([]entity.RetrievedChunk, error) {
	return r.retrieve(ctx, sessionID, queryText, topK, alpha, nil)
}

// RetrieveWithin is Retrieve restricted to the named files. Filenames the
// session does not hold match nothing; when the filter matches no chunks at
// all the result is empty.
func (r *Retriever) RetrieveWithin(ctx context.Context, sessionID, queryText string, topK int, alpha float64, filenames []string) ([]entity.RetrievedChunk, error) {
	if len(filenames) == 0 {
		return nil, apperr.New(apperr.ErrInvalidQuery, "filename filter is empty")
	}
	return r.retrieve(ctx, sessionID, queryText, topK, alpha, filenames)
}

func (r *Retriever) retrieve(ctx context.Context, sessionID, queryText string, topK int, alpha float64, filenames []string) ([]entity.RetrievedChunk, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, apperr.New(apperr.ErrInvalidQuery, "query text is empty")
	}
	if topK <= 0 {
		return nil, nil
	}

	chunks, err := r.index.SessionChunks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(filenames) > 0 {
		allowed := make(map[string]struct{}, len(filenames))
		for _, name := range filenames {
			allowed[name] = struct{}{}
		}
		filtered := chunks[:0:0]
		for _, chunk := range chunks {
			if _, ok := allowed[chunk.Filename]; ok {
				filtered = append(filtered, chunk)
			}
		}
		chunks = filtered
	}
	if len(chunks) == 0 {
		return []entity.RetrievedChunk{}, nil
	}

	queryVector, err := r.provider.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	fetch := topK * r.overfetch
	queryTerms := termSet(queryText)
	pool := make(map[chunkKey]*candidate, fetch*2)

	if len(filenames) > 0 {
		// Filtered mode: the filter already bounds the pool, so every
		// surviving chunk is scored directly instead of going through the
		// index's session-wide top-k.
		for _, chunk := range chunks {
			key := chunkKey{document: chunk.DocumentId, chunk: chunk.ChunkIndex}
			pool[key] = &candidate{
				entry:    chunk,
				vecScore: index.Cosine(chunk.Vector, queryVector),
				kwScore:  keywordScore(queryTerms, chunk.Text),
			}
		}
		return r.rank(sessionID, pool, topK, alpha), nil
	}

	vectorHits, err := r.index.Query(ctx, sessionID, queryVector, fetch)
	if err != nil {
		return nil, err
	}

	for _, hit := range vectorHits {
		key := chunkKey{document: hit.DocumentId, chunk: hit.ChunkIndex}
		pool[key] = &candidate{
			entry:    hit.Entry,
			vecScore: hit.Similarity,
			kwScore:  keywordScore(queryTerms, hit.Text),
		}
	}

	// Lexical-only pass: chunks the vector search missed but that share
	// terms with the query still enter the pool, up to the overfetch count.
	lexical := make([]*candidate, 0)
	for _, chunk := range chunks {
		key := chunkKey{document: chunk.DocumentId, chunk: chunk.ChunkIndex}
		if _, seen := pool[key]; seen {
			continue
		}
		score := keywordScore(queryTerms, chunk.Text)
		if score == 0 {
			continue
		}
		lexical = append(lexical, &candidate{
			entry:    chunk,
			vecScore: index.Cosine(chunk.Vector, queryVector),
			kwScore:  score,
		})
	}
	sort.Slice(lexical, func(i, j int) bool {
		if lexical[i].kwScore != lexical[j].kwScore {
			return lexical[i].kwScore > lexical[j].kwScore
		}
		return index.Less(
			index.ScoredEntry{Entry: lexical[i].entry, Similarity: lexical[i].vecScore},
			index.ScoredEntry{Entry: lexical[j].entry, Similarity: lexical[j].vecScore},
		)
	})
	if len(lexical) > fetch {
		lexical = lexical[:fetch]
	}
	for _, c := range lexical {
		pool[chunkKey{document: c.entry.DocumentId, chunk: c.entry.ChunkIndex}] = c
	}

	return r.rank(sessionID, pool, topK, alpha), nil
}

// rank normalizes both signals across the pool, fuses them, and maps the
// winners to retrieved chunks.
func (r *Retriever) rank(sessionID string, pool map[chunkKey]*candidate, topK int, alpha float64) []entity.RetrievedChunk {
	candidates := make([]*candidate, 0, len(pool))
	for _, c := range pool {
		candidates = append(candidates, c)
	}

	normalizeInPool(candidates, func(c *candidate) float64 { return c.vecScore }, func(c *candidate, v float64) { c.vecScore = v })
	normalizeInPool(candidates, func(c *candidate) float64 { return c.kwScore }, func(c *candidate, v float64) { c.kwScore = v })

	for _, c := range candidates {
		c.fusedScore = alpha*c.vecScore + (1-alpha)*c.kwScore
	}

	sort.Slice(candidates, func(i, j int) bool {
		return index.Less(
			index.ScoredEntry{Entry: candidates[i].entry, Similarity: candidates[i].fusedScore},
			index.ScoredEntry{Entry: candidates[j].entry, Similarity: candidates[j].fusedScore},
		)
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]entity.RetrievedChunk, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, entity.RetrievedChunk{
			Chunk: entity.Chunk{
				DocumentId: c.entry.DocumentId,
				Index:      c.entry.ChunkIndex,
				Text:       c.entry.Text,
				Start:      c.entry.Start,
				End:        c.entry.End,
				Page:       c.entry.Page,
				Paragraph:  c.entry.Paragraph,
			},
			Filename:     c.entry.Filename,
			VectorScore:  c.vecScore,
			KeywordScore: c.kwScore,
			FinalScore:   c.fusedScore,
		})
	}

	r.log.Debug("retriever", "retrieval complete", map[string]interface{}{
		"session_id": sessionID,
		"candidates": len(pool),
		"returned":   len(results),
	})
	return results
}

// normalizeInPool rescales one signal to [0, 1] across the candidate pool.
// When every candidate carries the same raw value the signal has no ranking
// power: all get 1 if the shared value is positive, else 0.
func normalizeInPool(candidates []*candidate, get func(*candidate) float64, set func(*candidate, float64)) {
	if len(candidates) == 0 {
		return
	}
	min, max := get(candidates[0]), get(candidates[0])
	for _, c := range candidates[1:] {
		v := get(c)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	for _, c := range candidates {
		if max == min {
			if max > 0 {
				set(c, 1)
			} else {
				set(c, 0)
			}
			continue
		}
		set(c, (get(c)-min)/(max-min))
	}
}
