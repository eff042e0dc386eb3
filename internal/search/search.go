// Package search answers queries over the index by running keyword and
// vector retrieval side by side and fusing their rankings.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/billie-coop/pacer/internal/embedder"
	"github.com/billie-coop/pacer/internal/rank"
	"github.com/billie-coop/pacer/internal/vectordb"
)

// Retrieval sources.
const (
	SourceKeyword = "keyword"
	SourceVector  = "vector"
)

const (
	defaultCandidates   = 50
	defaultSnippetWidth = 100
)

// Result is one fused hit.
type Result struct {
	ID        string   `json:"id" yaml:"id"`
	Path      string   `json:"path" yaml:"path"`
	StartLine int      `json:"start_line" yaml:"start_line"`
	EndLine   int      `json:"end_line" yaml:"end_line"`
	Score     float64  `json:"score" yaml:"score"`
	Sources   []string `json:"sources" yaml:"sources"`
	Snippet   string   `json:"snippet" yaml:"snippet"`
	Content   string   `json:"-" yaml:"-"`
}

// Searcher runs hybrid queries against a store.
type Searcher struct {
	store        vectordb.Store
	embedder     embedder.Embedder
	candidates   int
	snippetWidth int
	log          *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithCandidates sets how many hits each retrieval contributes to fusion.
func WithCandidates(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.candidates = n
		}
	}
}

// WithSnippetWidth sets the snippet width in terminal cells.
func WithSnippetWidth(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.snippetWidth = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Searcher) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a searcher. A nil embedder disables vector retrieval.
func New(store vectordb.Store, emb embedder.Embedder, opts ...Option) *Searcher {
	s := &Searcher{
		store:        store,
		embedder:     emb,
		candidates:   defaultCandidates,
		snippetWidth: defaultSnippetWidth,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type hit struct {
	doc    vectordb.Document
	source string
}

func hitID(h hit) string { return h.doc.ID }

// Search returns up to k fused results for query.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]Result, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	var keywordHits, vectorHits []hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.keyword(gctx, terms)
		if err != nil {
			return fmt.Errorf("keyword retrieval: %w", err)
		}
		keywordHits = hits
		return nil
	})
	if s.embedder != nil {
		g.Go(func() error {
			hits, err := s.vector(gctx, query)
			if err != nil {
				return fmt.Errorf("vector retrieval: %w", err)
			}
			vectorHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Debug("retrieval finished",
		zap.String("query", query),
		zap.Int("keyword", len(keywordHits)),
		zap.Int("vector", len(vectorHits)))

	sources := map[string][]string{}
	for _, list := range [][]hit{keywordHits, vectorHits} {
		for _, h := range list {
			sources[h.doc.ID] = appendUnique(sources[h.doc.ID], h.source)
		}
	}

	fused := rank.TopK(rank.FuseScored(hitID, keywordHits, vectorHits), k)
	results := make([]Result, len(fused))
	for i, f := range fused {
		d := f.Item.doc
		results[i] = Result{
			ID:        d.ID,
			Path:      d.Path,
			StartLine: d.StartLine,
			EndLine:   d.EndLine,
			Score:     f.Score,
			Sources:   sources[d.ID],
			Snippet:   snippet(d.Content, terms, s.snippetWidth),
			Content:   d.Content,
		}
	}
	return results, nil
}

// keyword ranks chunks by how often query terms occur, counting path
// matches double. Ties keep store order.
func (s *Searcher) keyword(ctx context.Context, terms []string) ([]hit, error) {
	docs, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		hit   hit
		score int
	}
	var matches []scored
	for _, d := range docs {
		content := strings.ToLower(d.Content)
		path := strings.ToLower(d.Path)
		score := 0
		for _, t := range terms {
			score += strings.Count(content, t) + 2*strings.Count(path, t)
		}
		if score > 0 {
			matches = append(matches, scored{hit{doc: d, source: SourceKeyword}, score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	out := make([]hit, 0, min(len(matches), s.candidates))
	for _, m := range rank.TopK(matches, s.candidates) {
		out = append(out, m.hit)
	}
	return out, nil
}

func (s *Searcher) vector(ctx context.Context, query string) ([]hit, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	similar, err := s.store.Query(ctx, embedding, s.candidates)
	if err != nil {
		return nil, err
	}
	out := make([]hit, len(similar))
	for i, sd := range similar {
		out[i] = hit{doc: sd.Document, source: SourceVector}
	}
	return out, nil
}

// Terms lowercases query and splits it into distinct words of two or more
// characters, in order of first appearance.
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		out = appendUnique(out, f)
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
