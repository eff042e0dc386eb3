package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billie-coop/pacer/internal/embedder"
	"github.com/billie-coop/pacer/internal/scheduler"
	"github.com/billie-coop/pacer/internal/vectordb"
)

const dim = 32

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func lines(n int, prefix string) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "%s line %d\n", prefix, i)
	}
	return sb.String()
}

func newScheduler(t *testing.T, limit int, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(limit, opts...)
	require.NoError(t, err)
	return s
}

// gatedEmbedder blocks every batch until release is closed.
type gatedEmbedder struct {
	*embedder.Mock
	started chan string
	release chan struct{}
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	g.started <- texts[0]
	<-g.release
	return g.Mock.EmbedBatch(ctx, texts)
}

// failingEmbedder fails any batch containing marker.
type failingEmbedder struct {
	*embedder.Mock
	marker string
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if strings.Contains(t, f.marker) {
			return nil, errors.New("model crashed")
		}
	}
	return f.Mock.EmbedBatch(ctx, texts)
}

func TestChunkLines(t *testing.T) {
	chunks := ChunkLines(lines(10, "x"), 4, 1)
	require.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
	assert.Equal(t, 4, chunks[1].StartLine)
	assert.Equal(t, 7, chunks[1].EndLine)
	assert.Equal(t, 7, chunks[2].StartLine)
	assert.Equal(t, 10, chunks[2].EndLine)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "x line 4"))
}

func TestChunkLines_EdgeCases(t *testing.T) {
	assert.Empty(t, ChunkLines("", 10, 2))
	assert.Empty(t, ChunkLines("\n\n   \n", 10, 2))

	one := ChunkLines("only", 10, 2)
	require.Len(t, one, 1)
	assert.Equal(t, Chunk{Content: "only", StartLine: 1, EndLine: 1}, one[0])

	// overlap >= size is ignored rather than looping forever
	assert.Len(t, ChunkLines(lines(6, "y"), 3, 5), 2)
}

func TestIndexProject(t *testing.T) {
	root := writeProject(t, map[string]string{
		"main.go":         lines(50, "main"),
		"docs/readme.md":  lines(5, "doc"),
		"blob.go":         "bin\x00ary",
		"image.png":       "not indexed",
		".pacer/index.db": "ignored",
	})
	store := vectordb.NewMemoryStore(dim)
	ix := New(root, newScheduler(t, 2), embedder.NewMock(dim), store, WithChunkLines(20))

	sum, err := ix.IndexProject(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Files)
	assert.Equal(t, 2, sum.Indexed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Failed)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sum.Chunks, n)

	state, ok := ix.State("main.go")
	require.True(t, ok)
	assert.Equal(t, StatusDone, state.Status)
	assert.Greater(t, state.Chunks, 1)

	blob, _ := ix.State("blob.go")
	assert.Equal(t, StatusSkipped, blob.Status)

	states := ix.States()
	require.Len(t, states, 3)
	assert.Equal(t, "blob.go", states[0].Path)
}

func TestIndexFiles_ReindexReplacesChunks(t *testing.T) {
	root := writeProject(t, map[string]string{"a.go": lines(30, "a")})
	store := vectordb.NewMemoryStore(dim)
	ix := New(root, newScheduler(t, 1), embedder.NewMock(dim), store, WithChunkLines(10))

	_, err := ix.IndexFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)
	first, _ := store.Count(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("short\n"), 0o644))
	_, err = ix.IndexFiles(context.Background(), []string{"a.go"})
	require.NoError(t, err)

	second, _ := store.Count(context.Background())
	assert.Greater(t, first, 1)
	assert.Equal(t, 1, second)
}

func TestIndexFiles_QueueFullWaitsForDrain(t *testing.T) {
	contents := map[string]string{}
	var paths []string
	for i := 0; i < 6; i++ {
		p := fmt.Sprintf("f%d.go", i)
		contents[p] = lines(3, p)
		paths = append(paths, p)
	}
	root := writeProject(t, contents)

	sched := newScheduler(t, 1, scheduler.WithMaxQueueSize(1))
	ix := New(root, sched, embedder.NewMock(dim), vectordb.NewMemoryStore(dim))

	sum, err := ix.IndexFiles(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Indexed)
	assert.Zero(t, sched.Stats().Pending)
}

func TestIndexFiles_FailuresAreJoined(t *testing.T) {
	root := writeProject(t, map[string]string{
		"good.go": "fine\n",
		"bad.go":  "poison\n",
	})
	emb := &failingEmbedder{Mock: embedder.NewMock(dim), marker: "poison"}
	ix := New(root, newScheduler(t, 2), emb, vectordb.NewMemoryStore(dim))

	sum, err := ix.IndexFiles(context.Background(), []string{"good.go", "bad.go", "missing.go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.go")
	assert.Contains(t, err.Error(), "missing.go")
	assert.Equal(t, 1, sum.Indexed)
	assert.Equal(t, 2, sum.Failed)

	bad, _ := ix.State("bad.go")
	assert.Equal(t, StatusFailed, bad.Status)
	assert.Contains(t, bad.Error, "model crashed")
}

func TestIndexer_CancelDropsQueuedFiles(t *testing.T) {
	contents := map[string]string{}
	var paths []string
	for i := 0; i < 5; i++ {
		p := fmt.Sprintf("f%d.go", i)
		contents[p] = p + "\n"
		paths = append(paths, p)
	}
	root := writeProject(t, contents)

	emb := &gatedEmbedder{
		Mock:    embedder.NewMock(dim),
		started: make(chan string, 5),
		release: make(chan struct{}),
	}
	sched := newScheduler(t, 1)
	ix := New(root, sched, emb, vectordb.NewMemoryStore(dim))

	type result struct {
		sum Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := ix.IndexFiles(context.Background(), paths)
		done <- result{sum, err}
	}()

	select {
	case <-emb.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first file never started")
	}
	require.Eventually(t, func() bool { return sched.Pending() == 4 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 4, ix.Cancel())
	close(emb.release)

	var r result
	select {
	case r = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("IndexFiles did not return")
	}
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.sum.Indexed)
	assert.Equal(t, 4, r.sum.Cancelled)

	s, _ := ix.State("f4.go")
	assert.Equal(t, StatusCancelled, s.Status)
}

func TestIndexFiles_CancelDuringBackpressure(t *testing.T) {
	tests := []struct {
		name      string
		interrupt func(cancel context.CancelFunc, ix *Indexer)
	}{
		{
			name:      "context_cancelled",
			interrupt: func(cancel context.CancelFunc, _ *Indexer) { cancel() },
		},
		{
			name:      "indexer_cancelled",
			interrupt: func(_ context.CancelFunc, ix *Indexer) { ix.Cancel() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents := map[string]string{}
			var paths []string
			for i := 0; i < 10; i++ {
				p := fmt.Sprintf("f%d.go", i)
				contents[p] = p + "\n"
				paths = append(paths, p)
			}
			root := writeProject(t, contents)

			emb := &gatedEmbedder{
				Mock:    embedder.NewMock(dim),
				started: make(chan string, 10),
				release: make(chan struct{}),
			}
			sched := newScheduler(t, 1, scheduler.WithMaxQueueSize(1))
			ix := New(root, sched, emb, vectordb.NewMemoryStore(dim))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			type result struct {
				sum Summary
				err error
			}
			done := make(chan result, 1)
			go func() {
				sum, err := ix.IndexFiles(ctx, paths)
				done <- result{sum, err}
			}()

			select {
			case <-emb.started:
			case <-time.After(2 * time.Second):
				t.Fatal("first file never started")
			}
			// f1 is queued and f2 is waiting for the queue to drain
			require.Eventually(t, func() bool { return sched.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

			tt.interrupt(cancel, ix)
			require.Eventually(t, func() bool { return sched.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)
			close(emb.release)

			var r result
			select {
			case r = <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("IndexFiles did not return")
			}
			require.NoError(t, r.err)
			assert.Equal(t, 1, r.sum.Indexed)
			assert.Equal(t, 9, r.sum.Cancelled)
			assert.Len(t, emb.started, 0, "no file after the interrupt reached the embedder")

			last, _ := ix.State("f9.go")
			assert.Equal(t, StatusCancelled, last.Status)
			first, _ := ix.State("f0.go")
			assert.Equal(t, StatusDone, first.Status)
		})
	}
}

func TestSync_RemovesDeletedFiles(t *testing.T) {
	root := writeProject(t, map[string]string{
		"keep.go": "keep\n",
		"gone.go": "gone\n",
	})
	store := vectordb.NewMemoryStore(dim)
	ix := New(root, newScheduler(t, 2), embedder.NewMock(dim), store)

	_, err := ix.IndexProject(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.go")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("new\n"), 0o644))

	sum, err := ix.Sync(context.Background(), []string{"gone.go", "new.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Indexed)

	docs, err := store.All(context.Background())
	require.NoError(t, err)
	var paths []string
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"keep.go", "new.go"}, paths)

	_, tracked := ix.State("gone.go")
	assert.False(t, tracked)
}
