package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
)

// Provider generates text embeddings. Implementations call an external
// model service; transport and quota failures surface as
// apperr.ErrEmbeddingUnavailable so callers can retry.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// Fingerprint returns the stable content address of a chunk: the SHA-256 of
// its whitespace-normalized text. Identical normalized text shares one cache
// entry across sessions.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// normalizeVector scales a vector to unit length. Cosine similarity over the
// index assumes normalized vectors.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
