package search

import (
	"context"
	"errors"
	"testing"

	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billie-coop/pacer/internal/embedder"
	"github.com/billie-coop/pacer/internal/vectordb"
)

const dim = 64

func seed(t *testing.T, emb embedder.Embedder, docs ...vectordb.Document) *vectordb.MemoryStore {
	t.Helper()
	store := vectordb.NewMemoryStore(dim)
	for i := range docs {
		vec, err := emb.Embed(context.Background(), docs[i].Content)
		require.NoError(t, err)
		docs[i].Embedding = vec
	}
	require.NoError(t, store.StoreBatch(context.Background(), docs))
	return store
}

func corpus() []vectordb.Document {
	return []vectordb.Document{
		{ID: "sched.go#0", Path: "internal/scheduler/sched.go", Content: "func (s *Scheduler) CancelAllPending() int {\n\t// drop the queue\n}", StartLine: 1, EndLine: 3},
		{ID: "router.go#0", Path: "internal/stream/router.go", Content: "func (r *Router) Feed(chunk string) {\n\t// marker detection\n}", StartLine: 1, EndLine: 3},
		{ID: "fusion.go#0", Path: "internal/rank/fusion.go", Content: "func Fuse() {\n\t// borda scoring of ranked lists\n}", StartLine: 1, EndLine: 3},
	}
}

type brokenEmbedder struct{ *embedder.Mock }

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("LM Studio not reachable")
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"cancel", "pending", "queue_size"}, Terms("Cancel pending, a PENDING queue_size!"))
	assert.Empty(t, Terms("  ? a "))
}

func TestSearch_FusesBothSources(t *testing.T) {
	emb := embedder.NewMock(dim)
	s := New(seed(t, emb, corpus()...), emb)

	got, err := s.Search(context.Background(), "marker feed", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	top := got[0]
	assert.Equal(t, "router.go#0", top.ID)
	assert.ElementsMatch(t, []string{SourceKeyword, SourceVector}, top.Sources)
	assert.InDelta(t, 2.0, top.Score, 1e-9)
	assert.Equal(t, "func (r *Router) Feed(chunk string) {", top.Snippet)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestSearch_KeywordOnly(t *testing.T) {
	store := seed(t, embedder.NewMock(dim), corpus()...)
	s := New(store, nil)

	got, err := s.Search(context.Background(), "borda", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fusion.go#0", got[0].ID)
	assert.Equal(t, []string{SourceKeyword}, got[0].Sources)
	assert.Equal(t, "// borda scoring of ranked lists", got[0].Snippet)
}

func TestSearch_PathMatchesCount(t *testing.T) {
	s := New(seed(t, embedder.NewMock(dim), corpus()...), nil)

	got, err := s.Search(context.Background(), "scheduler", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "sched.go#0", got[0].ID)
}

func TestSearch_LimitsToK(t *testing.T) {
	emb := embedder.NewMock(dim)
	s := New(seed(t, emb, corpus()...), emb)

	got, err := s.Search(context.Background(), "func", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := New(vectordb.NewMemoryStore(dim), embedder.NewMock(dim))
	got, err := s.Search(context.Background(), " ", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_VectorFailureFailsSearch(t *testing.T) {
	store := seed(t, embedder.NewMock(dim), corpus()...)
	s := New(store, brokenEmbedder{embedder.NewMock(dim)})

	_, err := s.Search(context.Background(), "marker", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector retrieval")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "", Truncate("abc", 0))

	// wide runes take two cells and are never split
	got := Truncate("日本語テキスト", 6)
	assert.Equal(t, "日本…", got)
	assert.LessOrEqual(t, uniseg.StringWidth(got), 6)

	// family emoji is one cluster
	family := "👨‍👩‍👧 family"
	out := Truncate(family, 4)
	assert.Equal(t, "👨‍👩‍👧…", out)
}
