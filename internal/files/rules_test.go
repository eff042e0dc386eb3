package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsIndexable(t *testing.T) {
	assert.True(t, IsIndexable("main.go"))
	assert.True(t, IsIndexable("README.MD"))
	assert.False(t, IsIndexable("logo.png"))
	assert.False(t, IsIndexable("Makefile"))
}

func TestShouldIgnore(t *testing.T) {
	tests := map[string]bool{
		"internal/app.go":          false,
		"node_modules/x/index.js":  true,
		".pacer/index.db":          true,
		"pkg/.hidden.go":           true,
		"vendor/github.com/a/b.go": true,
	}
	for path, want := range tests {
		assert.Equal(t, want, ShouldIgnore(path), path)
	}
}

func TestIsBinary(t *testing.T) {
	assert.False(t, IsBinary(nil))
	assert.False(t, IsBinary([]byte("package main\n")))
	assert.True(t, IsBinary([]byte{'E', 'L', 'F', 0, 1}))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	write("main.go")
	write("docs/guide.md")
	write("assets/logo.png")
	write("node_modules/dep/index.js")
	write(".pacer/config.json")

	got, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/guide.md", "main.go"}, got)
}

func TestFilter(t *testing.T) {
	got := Filter([]string{"a.go", "b.png", ".git/config", "c.md"})
	assert.Equal(t, []string{"a.go", "c.md"}, got)
}
