package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ChunkEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId      string          `gorm:"type:varchar(64);not null;index:idx_chunk_embeddings_session"`
	DocumentId     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Filename       string          `gorm:"type:text;not null"`
	ChunkIndex     int             `gorm:"default:0"` // 0-based index for ordering
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text / text-embedding-004 use 768 dimensions
	Metadata       datatypes.JSON  `gorm:"type:jsonb"`
	DocUploadedAt  time.Time       `gorm:"not null;index"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (ChunkEmbedding) TableName() string {
	return "chunk_embeddings"
}
