package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	require.NoError(t, m.Load())

	assert.FileExists(t, filepath.Join(dir, DirName, "config.json"))
	assert.FileExists(t, filepath.Join(dir, DirName, ".gitignore"))
	assert.Equal(t, DefaultConfig(), m.Get())
}

func TestManager_LoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DirName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DirName, "config.json"),
		[]byte(`{"marker": "ANSWER:", "scheduler": {"concurrency": 6, "max_queue_size": 12}}`), 0o644))

	m := NewManager(dir)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, "ANSWER:", cfg.Marker)
	assert.Equal(t, 6, cfg.Scheduler.Concurrency)
	assert.Equal(t, 12, cfg.Scheduler.MaxQueueSize)
	assert.Equal(t, "http://localhost:1234", cfg.LMStudioURL)
	assert.Equal(t, 40, cfg.Index.ChunkLines)
}

func TestManager_LoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DirName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DirName, "config.json"),
		[]byte(`{"marker": "", "scheduler": {"concurrency": 0}}`), 0o644))

	err := NewManager(dir).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marker must not be empty")
	assert.Contains(t, err.Error(), "scheduler.concurrency")
}

func TestManager_ExpandsEnvVars(t *testing.T) {
	t.Setenv("PACER_TEST_URL", "http://gpu-box:1234")

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DirName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DirName, "config.json"),
		[]byte(`{"lm_studio_url": "${PACER_TEST_URL}", "model": "$PACER_UNSET_VAR"}`), 0o644))

	m := NewManager(dir)
	require.NoError(t, m.Load())
	assert.Equal(t, "http://gpu-box:1234", m.Get().LMStudioURL)
	assert.Equal(t, "$PACER_UNSET_VAR", m.Get().Model)
}

func TestManager_Set(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{key: "scheduler.concurrency", value: "8"},
		{key: "marker", value: "### Answer"},
		{key: "index.store", value: "memory"},
		{key: "search.k", value: "3"},
		{key: "scheduler.concurrency", value: "many", wantErr: true},
		{key: "scheduler.max_queue_size", value: "0", wantErr: true},
		{key: "index.store", value: "postgres", wantErr: true},
		{key: "no.such.key", value: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			dir := t.TempDir()
			m := NewManager(dir)
			require.NoError(t, m.Load())
			before := *m.Get()

			err := m.Set(tt.key, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, before, *m.Get(), "failed Set must not change config")
				return
			}
			require.NoError(t, err)

			got, err := m.Lookup(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)

			reloaded := NewManager(dir)
			require.NoError(t, reloaded.Load())
			got, err = reloaded.Lookup(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestKeysAreAllLookupable(t *testing.T) {
	m := NewManager(t.TempDir())
	for _, k := range Keys() {
		_, err := m.Lookup(k)
		assert.NoError(t, err, k)
	}
}

func TestManager_ResolvePath(t *testing.T) {
	m := NewManager("/work/project")
	assert.Equal(t, filepath.Join("/work/project", ".pacer", "index.db"), m.ResolvePath(".pacer/index.db"))
	assert.Equal(t, "/abs/index.db", m.ResolvePath("/abs/index.db"))
	assert.Equal(t, "", m.ResolvePath(""))
}
