package retriever

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/index"
	"doc-chat-be/internal/pkg/logger"
	"doc-chat-be/pkg/chunker"
)

// fakeProvider embeds by marker words so tests control similarity exactly.
type fakeProvider struct {
	embed func(text string) []float32
	calls int
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	return f.embed(text), nil
}

func (f *fakeProvider) ModelID() string { return "fake/test" }

func markerEmbedder(marker string) func(string) []float32 {
	return func(text string) []float32 {
		if strings.Contains(strings.ToLower(text), marker) {
			return []float32{1, 0}
		}
		return []float32{0, 1}
	}
}

func indexChunks(t *testing.T, idx index.VectorIndex, sessionID string, embed func(string) []float32, texts ...string) uuid.UUID {
	t.Helper()
	docID := uuid.New()
	uploadedAt := time.Now()
	entries := make([]index.Entry, 0, len(texts))
	for i, text := range texts {
		entries = append(entries, index.Entry{
			SessionId:  sessionID,
			DocumentId: docID,
			Filename:   "doc.txt",
			ChunkIndex: i,
			Text:       text,
			Vector:     embed(text),
			UploadedAt: uploadedAt,
		})
	}
	require.NoError(t, idx.Upsert(context.Background(), entries))
	return docID
}

func TestRetrieveRejectsBlankQuery(t *testing.T) {
	provider := &fakeProvider{embed: markerEmbedder("x")}
	r, err := New(provider, index.NewMemoryIndex(), 3, logger.NewNopLogger())
	require.NoError(t, err)

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := r.Retrieve(context.Background(), "s1", query, 5, 0.7)
		assert.ErrorIs(t, err, apperr.ErrInvalidQuery)
	}
	assert.Zero(t, provider.calls)
}

func TestNewRejectsLowOverfetch(t *testing.T) {
	_, err := New(&fakeProvider{embed: markerEmbedder("x")}, index.NewMemoryIndex(), 1, logger.NewNopLogger())
	assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)
}

func TestRetrieveEmptySession(t *testing.T) {
	provider := &fakeProvider{embed: markerEmbedder("x")}
	r, err := New(provider, index.NewMemoryIndex(), 3, logger.NewNopLogger())
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "empty", "anything", 5, 0.7)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	// No point embedding a query when there is nothing to search.
	assert.Zero(t, provider.calls)
}

func TestRetrieveRanksKeywordMatchFirst(t *testing.T) {
	embed := markerEmbedder("engine")
	idx := index.NewMemoryIndex()
	indexChunks(t, idx, "s1", embed,
		"the engine assembly bolts to the frame",
		"warranty terms and coverage periods",
		"zebra migration patterns in the dry season",
	)

	r, err := New(&fakeProvider{embed: embed}, idx, 3, logger.NewNopLogger())
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "s1", "engine assembly", 2, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 1.0, results[0].KeywordScore)
	assert.Greater(t, results[0].FinalScore, results[1].FinalScore)
}

func TestRetrieveAddsLexicalOnlyHit(t *testing.T) {
	// Three decoys vector-close to the query, one orthogonal chunk holding
	// the only occurrence of the query term. With topK*overfetch = 2 the
	// vector pass misses it; the lexical pass must pull it in.
	embed := markerEmbedder("decoy")
	idx := index.NewMemoryIndex()
	indexChunks(t, idx, "s1", embed,
		"decoy one about nothing in particular",
		"decoy two about nothing in particular",
		"decoy three about nothing in particular",
		"the flux capacitor requires one point twenty one gigawatts",
	)

	r, err := New(&fakeProvider{embed: embed}, idx, 2, logger.NewNopLogger())
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "s1", "decoy flux capacitor gigawatts", 1, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Index)
	assert.Contains(t, results[0].Text, "flux capacitor")
}

func TestRetrieveDeterministicAcrossRuns(t *testing.T) {
	embed := markerEmbedder("alpha")
	idx := index.NewMemoryIndex()
	indexChunks(t, idx, "s1", embed,
		"alpha section one", "beta section two", "gamma section three",
		"delta section four", "epsilon section five",
	)

	r, err := New(&fakeProvider{embed: embed}, idx, 3, logger.NewNopLogger())
	require.NoError(t, err)

	first, err := r.Retrieve(context.Background(), "s1", "alpha section", 5, 0.7)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Retrieve(context.Background(), "s1", "alpha section", 5, 0.7)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	embed := markerEmbedder("topic")
	idx := index.NewMemoryIndex()
	indexChunks(t, idx, "s1", embed,
		"topic a", "topic b", "topic c", "topic d", "topic e", "topic f",
	)

	r, err := New(&fakeProvider{embed: embed}, idx, 3, logger.NewNopLogger())
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "s1", "topic", 2, 0.7)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieveScoresStayInRange(t *testing.T) {
	embed := markerEmbedder("report")
	idx := index.NewMemoryIndex()
	indexChunks(t, idx, "s1", embed,
		"quarterly report summary", "unrelated musings", "report appendix tables",
	)

	r, err := New(&fakeProvider{embed: embed}, idx, 3, logger.NewNopLogger())
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "s1", "quarterly report", 3, 0.7)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.GreaterOrEqual(t, res.VectorScore, 0.0)
		assert.LessOrEqual(t, res.VectorScore, 1.0)
		assert.GreaterOrEqual(t, res.KeywordScore, 0.0)
		assert.LessOrEqual(t, res.KeywordScore, 1.0)
		assert.GreaterOrEqual(t, res.FinalScore, 0.0)
		assert.LessOrEqual(t, res.FinalScore, 1.0)
		assert.Equal(t, "doc.txt", res.Filename)
	}
}

func TestRetrieveEndToEndWithChunker(t *testing.T) {
	// 2500 chars, no natural boundaries: chunks are exactly [0,1000),
	// [800,1800), [1600,2500). The unique term lives only inside the
	// second chunk's exclusive region.
	text := strings.Repeat("word ", 500)
	text = text[:1200] + "xylophone" + text[1209:]
	require.Len(t, text, 2500)

	c, err := chunker.New(1000, 200)
	require.NoError(t, err)
	chunks := c.Chunk(text)
	require.Len(t, chunks, 3)
	require.Equal(t, 800, chunks[1].Start)
	require.Equal(t, 1800, chunks[1].End)

	embed := markerEmbedder("xylophone")
	idx := index.NewMemoryIndex()
	docID := uuid.New()
	entries := make([]index.Entry, 0, len(chunks))
	for _, ch := range chunks {
		entries = append(entries, index.Entry{
			SessionId:  "s1",
			DocumentId: docID,
			Filename:   "words.txt",
			ChunkIndex: ch.Index,
			Text:       ch.Text,
			Vector:     embed(ch.Text),
			Start:      ch.Start,
			End:        ch.End,
			UploadedAt: time.Now(),
		})
	}
	require.NoError(t, idx.Upsert(context.Background(), entries))

	r, err := New(&fakeProvider{embed: embed}, idx, 3, logger.NewNopLogger())
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "s1", "where is the xylophone", 3, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 800, results[0].Start)
	assert.Equal(t, 1800, results[0].End)
	assert.Contains(t, results[0].Text, "xylophone")
	assert.Greater(t, results[0].FinalScore, results[1].FinalScore)
	assert.Greater(t, results[0].FinalScore, results[2].FinalScore)
}

func TestRetrieveSessionIsolation(t *testing.T) {
	embed := markerEmbedder("secret")
	idx := index.NewMemoryIndex()
	indexChunks(t, idx, "other", embed, "the secret launch codes")

	r, err := New(&fakeProvider{embed: embed}, idx, 3, logger.NewNopLogger())
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "mine", "secret launch codes", 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func indexFileChunks(t *testing.T, idx index.VectorIndex, sessionID, filename string, embed func(string) []float32, texts ...string) uuid.UUID {
	t.Helper()
	docID := uuid.New()
	uploadedAt := time.Now()
	entries := make([]index.Entry, 0, len(texts))
	for i, text := range texts {
		entries = append(entries, index.Entry{
			SessionId:  sessionID,
			DocumentId: docID,
			Filename:   filename,
			ChunkIndex: i,
			Text:       text,
			Vector:     embed(text),
			UploadedAt: uploadedAt,
		})
	}
	require.NoError(t, idx.Upsert(context.Background(), entries))
	return docID
}

func TestRetrieveWithinRestrictsToNamedFiles(t *testing.T) {
	idx := index.NewMemoryIndex()
	embed := markerEmbedder("turbine")
	indexFileChunks(t, idx, "s1", "turbine.txt", embed, "the turbine blade tolerances")
	indexFileChunks(t, idx, "s1", "gearbox.txt", embed, "the gearbox oil schedule")

	r, err := New(&fakeProvider{embed: embed}, idx, 3, logger.NewNopLogger())
	require.NoError(t, err)

	// The turbine chunk dominates on both signals, but the filter keeps it
	// out entirely.
	results, err := r.RetrieveWithin(context.Background(), "s1", "turbine blade tolerances", 5, 0.7, []string{"gearbox.txt"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "gearbox.txt", results[0].Filename)
}

func TestRetrieveWithinUnknownFilename(t *testing.T) {
	idx := index.NewMemoryIndex()
	embed := markerEmbedder("turbine")
	indexFileChunks(t, idx, "s1", "turbine.txt", embed, "the turbine blade tolerances")

	provider := &fakeProvider{embed: embed}
	r, err := New(provider, idx, 3, logger.NewNopLogger())
	require.NoError(t, err)

	results, err := r.RetrieveWithin(context.Background(), "s1", "turbine blade tolerances", 5, 0.7, []string{"nope.txt"})
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Zero(t, provider.calls)
}

func TestRetrieveWithinEmptyFilter(t *testing.T) {
	r, err := New(&fakeProvider{embed: markerEmbedder("x")}, index.NewMemoryIndex(), 3, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = r.RetrieveWithin(context.Background(), "s1", "anything", 5, 0.7, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidQuery)
}

func TestKeywordScore(t *testing.T) {
	tests := []struct {
		name  string
		query string
		chunk string
		want  float64
	}{
		{"full overlap", "engine assembly", "the Engine Assembly manual", 1.0},
		{"half overlap", "engine warranty", "the engine manual", 0.5},
		{"no overlap", "engine", "warranty terms", 0.0},
		{"case insensitive", "ENGINE", "engine", 1.0},
		{"punctuation split", "flux-capacitor", "flux capacitor specs", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keywordScore(termSet(tt.query), tt.chunk)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
