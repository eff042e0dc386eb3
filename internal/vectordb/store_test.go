package vectordb

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

func doc(id, path string, chunk int, vec ...float32) Document {
	return Document{
		ID:         id,
		Path:       path,
		Content:    "content of " + id,
		Embedding:  vec,
		ChunkIndex: chunk,
		StartLine:  chunk*10 + 1,
		EndLine:    chunk*10 + 10,
	}
}

type storeFactory func(t *testing.T) Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore(testDim)
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "index.db"), testDim)
			if err != nil {
				t.Skipf("sqlite store unavailable: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStore_QueryOrdersBySimilarity(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			require.NoError(t, s.StoreBatch(ctx, []Document{
				doc("x", "a.go", 0, 1, 0, 0, 0),
				doc("y", "a.go", 1, 0, 1, 0, 0),
				doc("xy", "b.go", 0, 1, 1, 0, 0),
			}))

			got, err := s.Query(ctx, []float32{1, 0, 0, 0}, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "x", got[0].ID)
			assert.Equal(t, "xy", got[1].ID)
			assert.InDelta(t, 1.0, got[0].Score, 1e-5)
			assert.Greater(t, got[0].Score, got[1].Score)
			assert.Equal(t, 1, got[0].StartLine)
		})
	}
}

func TestStore_ReplaceDeleteClear(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			require.NoError(t, s.Store(ctx, doc("a0", "a.go", 0, 1, 0, 0, 0)))
			require.NoError(t, s.Store(ctx, doc("a1", "a.go", 1, 0, 1, 0, 0)))
			require.NoError(t, s.Store(ctx, doc("b0", "b.go", 0, 0, 0, 1, 0)))

			// same ID replaces
			replaced := doc("a0", "a.go", 0, 0, 0, 0, 1)
			replaced.Content = "new"
			require.NoError(t, s.Store(ctx, replaced))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			all, err := s.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"a0", "a1", "b0"}, []string{all[0].ID, all[1].ID, all[2].ID})
			assert.Equal(t, "new", all[0].Content)
			assert.Nil(t, all[0].Embedding)

			require.NoError(t, s.Delete(ctx, "a.go"))
			n, _ = s.Count(ctx)
			assert.Equal(t, 1, n)

			got, err := s.Query(ctx, []float32{1, 0, 0, 0}, 10)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "b0", got[0].ID)

			require.NoError(t, s.Clear(ctx))
			n, _ = s.Count(ctx)
			assert.Equal(t, 0, n)
		})
	}
}

func TestStore_RejectsBadDocuments(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			assert.ErrorIs(t, s.Store(ctx, doc("", "a.go", 0, 1, 0, 0, 0)), ErrEmptyID)
			assert.ErrorIs(t, s.Store(ctx, doc("short", "a.go", 0, 1, 0)), ErrDimensionMismatch)

			_, err := s.Query(ctx, []float32{1}, 3)
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			got, err := s.Query(ctx, []float32{1, 0, 0, 0}, 0)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSQLiteStore_DimensionIsPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := NewSQLiteStore(ctx, path, testDim)
	if err != nil {
		t.Skipf("sqlite store unavailable: %v", err)
	}
	require.NoError(t, s.Close())

	_, err = NewSQLiteStore(ctx, path, testDim*2)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	s, err = NewSQLiteStore(ctx, path, testDim)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestMemoryStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testDim)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = s.Store(ctx, doc(fmt.Sprintf("%d-%d", i, j), "f.go", j, 1, 0, 0, 0))
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 400, n)
}
