package index

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/model"
)

// PgVectorIndex stores chunk vectors in Postgres with the pgvector
// extension. Session data stays purgeable as a unit: every row carries its
// session id and deletes filter on it.
type PgVectorIndex struct {
	db *gorm.DB
}

func NewPgVectorIndex(db *gorm.DB) (*PgVectorIndex, error) {
	if err := db.AutoMigrate(&model.ChunkEmbedding{}); err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "chunk embeddings migration failed", err)
	}
	return &PgVectorIndex{db: db}, nil
}

type chunkMetadata struct {
	Start     int `json:"start"`
	End       int `json:"end"`
	Page      int `json:"page"`
	Paragraph int `json:"paragraph"`
}

func (p *PgVectorIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]*model.ChunkEmbedding, 0, len(entries))
	for _, e := range entries {
		meta, err := json.Marshal(chunkMetadata{
			Start:     e.Start,
			End:       e.End,
			Page:      e.Page,
			Paragraph: e.Paragraph,
		})
		if err != nil {
			return err
		}
		rows = append(rows, &model.ChunkEmbedding{
			SessionId:      e.SessionId,
			DocumentId:     e.DocumentId,
			Filename:       e.Filename,
			ChunkIndex:     e.ChunkIndex,
			Document:       e.Text,
			EmbeddingValue: pgvector.NewVector(e.Vector),
			Metadata:       datatypes.JSON(meta),
			DocUploadedAt:  e.UploadedAt,
		})
	}

	type docKey struct {
		session  string
		document uuid.UUID
	}
	seen := make(map[docKey]bool)

	// One transaction per upsert: a failure rolls back every chunk, never
	// leaving some-but-not-all of a document indexed.
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			key := docKey{session: row.SessionId, document: row.DocumentId}
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := tx.Where("session_id = ? AND document_id = ?", row.SessionId, row.DocumentId).
				Delete(&model.ChunkEmbedding{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(rows).Error
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, "vector upsert failed", err)
	}
	return nil
}

func (p *PgVectorIndex) DeleteDocument(ctx context.Context, sessionID string, documentID uuid.UUID) error {
	err := p.db.WithContext(ctx).
		Where("session_id = ? AND document_id = ?", sessionID, documentID).
		Delete(&model.ChunkEmbedding{}).Error
	if err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, "document delete failed", err)
	}
	return nil
}

func (p *PgVectorIndex) DeleteSession(ctx context.Context, sessionID string) error {
	err := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.ChunkEmbedding{}).Error
	if err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, "session delete failed", err)
	}
	return nil
}

func (p *PgVectorIndex) Query(ctx context.Context, sessionID string, vector []float32, k int) ([]ScoredEntry, error) {
	if k <= 0 {
		return nil, nil
	}

	// Cosine distance in pgvector is 1 - cosine_similarity.
	type result struct {
		model.ChunkEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)
	err := p.db.WithContext(ctx).
		Table("chunk_embeddings").
		Select("chunk_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("session_id = ?", sessionID).
		Order("similarity DESC").
		Order("doc_uploaded_at ASC").
		Order("chunk_index ASC").
		Limit(k).
		Scan(&results).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "vector query failed", err)
	}

	scored := make([]ScoredEntry, 0, len(results))
	for _, res := range results {
		entry, err := toEntry(&res.ChunkEmbedding)
		if err != nil {
			return nil, err
		}
		scored = append(scored, ScoredEntry{Entry: entry, Similarity: res.Similarity})
	}
	return scored, nil
}

func (p *PgVectorIndex) SessionChunks(ctx context.Context, sessionID string) ([]Entry, error) {
	var rows []*model.ChunkEmbedding
	err := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("doc_uploaded_at ASC").
		Order("chunk_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "session chunks fetch failed", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := toEntry(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (p *PgVectorIndex) SessionFilenames(ctx context.Context, sessionID string) ([]string, error) {
	var names []string
	err := p.db.WithContext(ctx).
		Model(&model.ChunkEmbedding{}).
		Distinct("filename").
		Where("session_id = ?", sessionID).
		Pluck("filename", &names).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "session filenames fetch failed", err)
	}
	return names, nil
}

func toEntry(row *model.ChunkEmbedding) (Entry, error) {
	var meta chunkMetadata
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal([]byte(row.Metadata), &meta); err != nil {
			return Entry{}, err
		}
	}
	return Entry{
		SessionId:  row.SessionId,
		DocumentId: row.DocumentId,
		Filename:   row.Filename,
		ChunkIndex: row.ChunkIndex,
		Text:       row.Document,
		Vector:     row.EmbeddingValue.Slice(),
		Start:      meta.Start,
		End:        meta.End,
		Page:       meta.Page,
		Paragraph:  meta.Paragraph,
		UploadedAt: row.DocUploadedAt,
	}, nil
}
