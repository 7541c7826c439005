package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/config"
	"doc-chat-be/internal/entity"
	"doc-chat-be/internal/pkg/logger"
)

func testLimits() config.SessionConfig {
	return config.SessionConfig{
		MaxFilesPerSession:     4,
		MaxFileSizeMB:          20,
		MaxQuestionsPerSession: 50,
		TimeoutHours:           24,
	}
}

func newTestRegistry(purge PurgeFunc) *Registry {
	return NewRegistry(testLimits(), purge, logger.NewNopLogger())
}

func doc(filename string) entity.Document {
	return entity.Document{
		Id:         uuid.New(),
		Filename:   filename,
		UploadedAt: time.Now(),
	}
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry(nil)

	s := r.Create("ollama", "ollama/nomic-embed-text")
	require.NotEmpty(t, s.Id)

	got, err := r.Get(s.Id)
	require.NoError(t, err)
	assert.Equal(t, "ollama", got.Provider)
	assert.Equal(t, "ollama/nomic-embed-text", got.ModelID)
}

func TestGetUnknownSession(t *testing.T) {
	r := newTestRegistry(nil)

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFileQuotaEnforced(t *testing.T) {
	r := newTestRegistry(nil)
	s := r.Create("ollama", "m")

	for i := 0; i < testLimits().MaxFilesPerSession; i++ {
		require.NoError(t, r.AddDocument(s.Id, doc(string(rune('a'+i))+".txt")))
	}

	err := r.AddDocument(s.Id, doc("overflow.txt"))
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	docs, err := r.Documents(s.Id)
	require.NoError(t, err)
	assert.Len(t, docs, testLimits().MaxFilesPerSession)
}

func TestDuplicateFilenameRejectedWithoutConsumingQuota(t *testing.T) {
	r := newTestRegistry(nil)
	s := r.Create("ollama", "m")

	require.NoError(t, r.AddDocument(s.Id, doc("report.txt")))
	err := r.AddDocument(s.Id, doc("report.txt"))
	assert.ErrorIs(t, err, apperr.ErrDuplicateFile)

	docs, err := r.Documents(s.Id)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// The rejected upload must not have taken a quota slot.
	for _, name := range []string{"b.txt", "c.txt", "d.txt"} {
		require.NoError(t, r.AddDocument(s.Id, doc(name)))
	}
}

func TestConcurrentUploadsNeverOvershootQuota(t *testing.T) {
	r := newTestRegistry(nil)
	s := r.Create("ollama", "m")
	limit := testLimits().MaxFilesPerSession

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.AddDocument(s.Id, doc("file-"+uuid.NewString()+".txt"))
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
		}
	}
	assert.Equal(t, limit, accepted)
}

func TestRemoveDocumentFreesQuotaSlot(t *testing.T) {
	r := newTestRegistry(nil)
	s := r.Create("ollama", "m")

	uploaded := doc("a.txt")
	require.NoError(t, r.AddDocument(s.Id, uploaded))

	removed, err := r.RemoveDocument(s.Id, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, uploaded.Id, removed.Id)

	_, err = r.RemoveDocument(s.Id, "a.txt")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, r.AddDocument(s.Id, doc("a.txt")))
}

func TestQuestionQuotaEnforced(t *testing.T) {
	limits := testLimits()
	limits.MaxQuestionsPerSession = 3
	r := NewRegistry(limits, nil, logger.NewNopLogger())
	s := r.Create("ollama", "m")

	for want := 1; want <= 3; want++ {
		n, err := r.RecordQuestion(s.Id)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := r.RecordQuestion(s.Id)
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.Equal(t, 3, n)

	count, err := r.Questions(s.Id)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestClearPurgesVectors(t *testing.T) {
	var mu sync.Mutex
	var purged []string
	purge := func(_ context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		purged = append(purged, id)
		return nil
	}

	r := newTestRegistry(purge)
	s := r.Create("ollama", "m")

	r.Clear(s.Id)

	_, err := r.Get(s.Id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{s.Id}, purged)
}

func TestClearUnknownSessionIsNoOp(t *testing.T) {
	r := newTestRegistry(func(_ context.Context, _ string) error {
		t.Fatal("purge must not run for unknown session")
		return nil
	})
	r.Clear("nope")
}

func TestExpireIfStale(t *testing.T) {
	r := newTestRegistry(nil)
	s := r.Create("ollama", "m")

	assert.False(t, r.ExpireIfStale(s.Id, time.Now()))

	future := time.Now().Add(25 * time.Hour)
	assert.True(t, r.ExpireIfStale(s.Id, future))

	_, err := r.Get(s.Id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetExpiresStaleSession(t *testing.T) {
	purged := make([]string, 0)
	r := newTestRegistry(func(_ context.Context, sessionID string) error {
		purged = append(purged, sessionID)
		return nil
	})
	s := r.Create("ollama", "m")

	// Backdate the activity marker past the inactivity window so the next
	// lookup, not the janitor, is what expires the session.
	s.LastActiveAt = time.Now().Add(-25 * time.Hour)

	_, err := r.Get(s.Id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, []string{s.Id}, purged)
	assert.Zero(t, r.Count())
}

func TestSessionsAreIsolated(t *testing.T) {
	r := newTestRegistry(nil)
	a := r.Create("ollama", "m")
	b := r.Create("ollama", "m")

	require.NoError(t, r.AddDocument(a.Id, doc("a.txt")))

	docs, err := r.Documents(b.Id)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 2, r.Count())
}
