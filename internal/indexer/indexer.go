// Package indexer chunks project files, embeds each chunk and stores the
// vectors. Every file is one task on a shared scheduler, so indexing never
// runs more embedding requests at once than the scheduler allows.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/billie-coop/pacer/internal/csync"
	"github.com/billie-coop/pacer/internal/embedder"
	"github.com/billie-coop/pacer/internal/files"
	"github.com/billie-coop/pacer/internal/scheduler"
	"github.com/billie-coop/pacer/internal/vectordb"
)

// DefaultChunkLines is the window size when none is configured.
const DefaultChunkLines = 40

// Indexer feeds files through the scheduler into a vector store.
type Indexer struct {
	root       string
	sched      *scheduler.Scheduler
	embedder   embedder.Embedder
	store      vectordb.Store
	chunkLines int
	log        *zap.Logger

	states *csync.Map[string, FileState]

	mu      sync.Mutex
	runs    map[int]context.CancelFunc
	nextRun int
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithChunkLines sets the line window per chunk.
func WithChunkLines(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.chunkLines = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(ix *Indexer) {
		if log != nil {
			ix.log = log
		}
	}
}

// New creates an indexer for files under root.
func New(root string, sched *scheduler.Scheduler, emb embedder.Embedder, store vectordb.Store, opts ...Option) *Indexer {
	ix := &Indexer{
		root:       root,
		sched:      sched,
		embedder:   emb,
		store:      store,
		chunkLines: DefaultChunkLines,
		log:        zap.NewNop(),
		states:     csync.NewMap[string, FileState](),
		runs:       make(map[int]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

type fileResult struct {
	chunks  int
	skipped bool
}

type pendingFile struct {
	path   string
	handle *scheduler.Handle[fileResult]
}

// IndexProject discovers every indexable file under root and indexes it.
func (ix *Indexer) IndexProject(ctx context.Context) (Summary, error) {
	paths, err := files.Discover(ix.root)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to discover files: %w", err)
	}
	ix.log.Info("discovered files", zap.Int("count", len(paths)), zap.String("root", ix.root))
	return ix.IndexFiles(ctx, paths)
}

// IndexFiles indexes paths (relative to root) and waits for all of them.
// Per-file failures are joined into the returned error; cancelled files are
// counted but are not errors.
//
// When ctx ends or Cancel is called, no further files are submitted and
// queued ones are dropped. Files already being embedded run to completion
// and are counted normally.
func (ix *Indexer) IndexFiles(ctx context.Context, paths []string) (Summary, error) {
	sum := Summary{Files: len(paths)}
	var errs []error

	runCtx, done := ix.beginRun(ctx)
	defer done()
	taskCtx := context.WithoutCancel(ctx)

	pending := make([]pendingFile, 0, len(paths))
	for _, p := range paths {
		if runCtx.Err() != nil {
			ix.setState(p, StatusCancelled, 0, nil)
			sum.Cancelled++
			continue
		}
		ix.setState(p, StatusQueued, 0, nil)

		h, err := ix.submit(runCtx, taskCtx, p)
		if err != nil {
			if runCtx.Err() != nil {
				ix.setState(p, StatusCancelled, 0, nil)
				sum.Cancelled++
				continue
			}
			ix.setState(p, StatusFailed, 0, err)
			sum.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		pending = append(pending, pendingFile{path: p, handle: h})
	}
	if runCtx.Err() != nil {
		// a submit can race the cancel
		ix.sched.CancelAllPending()
	}

	for _, pf := range pending {
		res, err := pf.handle.Wait(taskCtx)
		switch {
		case err == nil && res.skipped:
			ix.setState(pf.path, StatusSkipped, 0, nil)
			sum.Skipped++
		case err == nil:
			ix.setState(pf.path, StatusDone, res.chunks, nil)
			sum.Indexed++
			sum.Chunks += res.chunks
		case errors.Is(err, scheduler.ErrCancelled):
			ix.setState(pf.path, StatusCancelled, 0, nil)
			sum.Cancelled++
		default:
			ix.setState(pf.path, StatusFailed, 0, err)
			sum.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", pf.path, err))
		}
	}

	ix.log.Info("indexing finished",
		zap.Int("indexed", sum.Indexed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("cancelled", sum.Cancelled),
		zap.Int("chunks", sum.Chunks))

	return sum, errors.Join(errs...)
}

// Sync brings the index in line with the given paths: files that still
// exist are reindexed and files that are gone are removed from the store.
func (ix *Indexer) Sync(ctx context.Context, paths []string) (Summary, error) {
	var present []string
	var errs []error
	for _, p := range paths {
		_, err := os.Stat(filepath.Join(ix.root, filepath.FromSlash(p)))
		switch {
		case err == nil:
			present = append(present, p)
		case errors.Is(err, fs.ErrNotExist):
			if err := ix.store.Delete(ctx, p); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p, err))
				continue
			}
			ix.states.Delete(p)
			ix.log.Debug("removed from index", zap.String("path", p))
		default:
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}

	sum, err := ix.IndexFiles(ctx, present)
	return sum, errors.Join(append(errs, err)...)
}

// beginRun registers a cancellable run so Cancel can stop its submission
// loop. The run is also cancelled when ctx ends.
func (ix *Indexer) beginRun(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)

	ix.mu.Lock()
	id := ix.nextRun
	ix.nextRun++
	ix.runs[id] = cancel
	ix.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ix.Cancel() })
	return runCtx, func() {
		stop()
		ix.mu.Lock()
		delete(ix.runs, id)
		ix.mu.Unlock()
		cancel()
	}
}

// submit queues one file. A full queue is waited out once before giving up;
// the wait ends early if ctx does. The task itself runs under taskCtx.
func (ix *Indexer) submit(ctx, taskCtx context.Context, path string) (*scheduler.Handle[fileResult], error) {
	task := func(ctx context.Context) (fileResult, error) {
		return ix.indexFile(ctx, path)
	}
	opts := []scheduler.SubmitOption{
		scheduler.WithLabel("index"),
		scheduler.WithMetadata("path", path),
	}

	h, err := scheduler.Submit(ix.sched, taskCtx, task, opts...)
	if !errors.Is(err, scheduler.ErrQueueFull) {
		return h, err
	}

	ix.log.Debug("queue full, waiting for drain", zap.String("path", path))
	if err := ix.sched.AwaitDrained(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scheduler.Submit(ix.sched, taskCtx, task, opts...)
}

func (ix *Indexer) indexFile(ctx context.Context, path string) (fileResult, error) {
	ix.setState(path, StatusIndexing, 0, nil)

	content, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(path)))
	if err != nil {
		return fileResult{}, fmt.Errorf("failed to read file: %w", err)
	}
	if files.IsBinary(content) {
		return fileResult{skipped: true}, nil
	}

	if err := ix.store.Delete(ctx, path); err != nil {
		return fileResult{}, fmt.Errorf("failed to delete old embeddings: %w", err)
	}

	chunks := ChunkLines(string(content), ix.chunkLines, ix.chunkLines/6)
	if len(chunks) == 0 {
		return fileResult{}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fileResult{}, fmt.Errorf("failed to embed chunks: %w", err)
	}

	now := time.Now()
	docs := make([]vectordb.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectordb.Document{
			ID:         fmt.Sprintf("%s#%d", path, i),
			Path:       path,
			Content:    c.Content,
			Embedding:  vectors[i],
			ChunkIndex: i,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			UpdatedAt:  now,
		}
	}

	if err := ix.store.StoreBatch(ctx, docs); err != nil {
		return fileResult{}, fmt.Errorf("failed to store embeddings: %w", err)
	}
	return fileResult{chunks: len(docs)}, nil
}

// Cancel stops every IndexFiles call from submitting more files, drops
// every file still waiting in the scheduler queue and returns how many were
// dropped. Files already being embedded finish normally.
func (ix *Indexer) Cancel() int {
	ix.mu.Lock()
	for _, cancel := range ix.runs {
		cancel()
	}
	ix.mu.Unlock()

	n := ix.sched.CancelAllPending()
	ix.log.Info("indexing cancelled", zap.Int("dropped", n))
	return n
}

// State returns the last recorded state of a file.
func (ix *Indexer) State(path string) (FileState, bool) {
	return ix.states.Get(path)
}

// States returns a snapshot of every file's state, sorted by path.
func (ix *Indexer) States() []FileState {
	keys := csync.SortedKeys(ix.states, func(a, b string) bool { return a < b })
	out := make([]FileState, 0, len(keys))
	for _, k := range keys {
		if s, ok := ix.states.Get(k); ok {
			out = append(out, s)
		}
	}
	return out
}

func (ix *Indexer) setState(path string, status Status, chunks int, err error) {
	ix.states.Update(path, func(old FileState, _ bool) FileState {
		old.Path = path
		old.Status = status
		old.Chunks = chunks
		old.Error = ""
		if err != nil {
			old.Error = err.Error()
		}
		old.UpdatedAt = time.Now()
		return old
	})
}
