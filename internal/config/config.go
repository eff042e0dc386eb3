package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DirName is the per-project data directory.
const DirName = ".pacer"

// Config represents the pacer configuration
type Config struct {
	// LM Studio settings
	LMStudioURL    string `json:"lm_studio_url"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embedding_model"`

	// Marker separates a model's scratch work from its answer
	Marker string `json:"marker"`

	Scheduler SchedulerConfig `json:"scheduler"`
	Index     IndexConfig     `json:"index"`
	Search    SearchConfig    `json:"search"`
	Log       LogConfig       `json:"log"`
}

// SchedulerConfig bounds parallel LLM and embedding work.
type SchedulerConfig struct {
	Concurrency  int `json:"concurrency"`
	MaxQueueSize int `json:"max_queue_size"`
}

// IndexConfig controls how files are chunked and where vectors live.
type IndexConfig struct {
	// Store is "sqlite" or "memory"
	Store      string `json:"store"`
	DBPath     string `json:"db_path"`
	ChunkLines int    `json:"chunk_lines"`
}

// SearchConfig controls hybrid search.
type SearchConfig struct {
	// K is the number of fused results returned
	K int `json:"k"`
	// Candidates is how many results each signal contributes before fusion
	Candidates int `json:"candidates"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `json:"level"`
	// Format: console or json
	Format string `json:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `json:"outputs"`
	// Rotation applies to file outputs
	Rotation    RotationConfig `json:"rotation"`
	Development bool           `json:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `json:"enable"`
	MaxSizeMB  int  `json:"max_size_mb"`
	MaxBackups int  `json:"max_backups"`
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LMStudioURL: "http://localhost:1234",
		Marker:      "<final>",
		Scheduler: SchedulerConfig{
			Concurrency:  2,
			MaxQueueSize: 1000,
		},
		Index: IndexConfig{
			Store:      "sqlite",
			DBPath:     filepath.Join(DirName, "index.db"),
			ChunkLines: 40,
		},
		Search: SearchConfig{
			K:          10,
			Candidates: 50,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
		},
	}
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Marker == "" {
		errs = append(errs, errors.New("marker must not be empty"))
	}
	if c.Scheduler.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("scheduler.concurrency must be positive, got %d", c.Scheduler.Concurrency))
	}
	if c.Scheduler.MaxQueueSize < 1 {
		errs = append(errs, fmt.Errorf("scheduler.max_queue_size must be positive, got %d", c.Scheduler.MaxQueueSize))
	}
	if c.Index.Store != "sqlite" && c.Index.Store != "memory" {
		errs = append(errs, fmt.Errorf("index.store must be sqlite or memory, got %q", c.Index.Store))
	}
	if c.Index.ChunkLines < 1 {
		errs = append(errs, fmt.Errorf("index.chunk_lines must be positive, got %d", c.Index.ChunkLines))
	}
	return errors.Join(errs...)
}

// Manager handles configuration loading and saving
type Manager struct {
	projectPath string
	configPath  string
	config      *Config
}

// NewManager creates a new configuration manager
func NewManager(projectPath string) *Manager {
	return &Manager{
		projectPath: projectPath,
		configPath:  filepath.Join(projectPath, DirName, "config.json"),
		config:      DefaultConfig(),
	}
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk, creating defaults if needed
func (m *Manager) Load() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", DirName, err)
	}

	if err := m.ensureGitignore(); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		return m.Save()
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so missing keys keep sane values
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}

	m.expandEnvVars(config)

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.config = config
	return nil
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	return m.config
}

// ResolvePath makes a config-relative path absolute against the project.
func (m *Manager) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.projectPath, p)
}

// Keys lists the settings accepted by Set and Lookup.
func Keys() []string {
	return []string{
		"lm_studio_url", "model", "embedding_model", "marker",
		"scheduler.concurrency", "scheduler.max_queue_size",
		"index.store", "index.db_path", "index.chunk_lines",
		"search.k", "search.candidates",
		"log.level", "log.format",
	}
}

// Lookup returns a setting as a string.
func (m *Manager) Lookup(key string) (string, error) {
	c := m.config
	switch key {
	case "lm_studio_url":
		return c.LMStudioURL, nil
	case "model":
		return c.Model, nil
	case "embedding_model":
		return c.EmbeddingModel, nil
	case "marker":
		return c.Marker, nil
	case "scheduler.concurrency":
		return strconv.Itoa(c.Scheduler.Concurrency), nil
	case "scheduler.max_queue_size":
		return strconv.Itoa(c.Scheduler.MaxQueueSize), nil
	case "index.store":
		return c.Index.Store, nil
	case "index.db_path":
		return c.Index.DBPath, nil
	case "index.chunk_lines":
		return strconv.Itoa(c.Index.ChunkLines), nil
	case "search.k":
		return strconv.Itoa(c.Search.K), nil
	case "search.candidates":
		return strconv.Itoa(c.Search.Candidates), nil
	case "log.level":
		return c.Log.Level, nil
	case "log.format":
		return c.Log.Format, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// Set updates a configuration value and saves
func (m *Manager) Set(key, value string) error {
	next := *m.config
	c := &next

	var err error
	switch key {
	case "lm_studio_url":
		c.LMStudioURL = value
	case "model":
		c.Model = value
	case "embedding_model":
		c.EmbeddingModel = value
	case "marker":
		c.Marker = value
	case "scheduler.concurrency":
		c.Scheduler.Concurrency, err = strconv.Atoi(value)
	case "scheduler.max_queue_size":
		c.Scheduler.MaxQueueSize, err = strconv.Atoi(value)
	case "index.store":
		c.Index.Store = value
	case "index.db_path":
		c.Index.DBPath = value
	case "index.chunk_lines":
		c.Index.ChunkLines, err = strconv.Atoi(value)
	case "search.k":
		c.Search.K, err = strconv.Atoi(value)
	case "search.candidates":
		c.Search.Candidates, err = strconv.Atoi(value)
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	m.config = c
	return m.Save()
}

// ensureGitignore creates a .gitignore in the data directory with smart defaults
func (m *Manager) ensureGitignore() error {
	gitignorePath := filepath.Join(filepath.Dir(m.configPath), ".gitignore")

	if _, err := os.Stat(gitignorePath); !os.IsNotExist(err) {
		return nil
	}

	gitignoreContent := `# pacer data directory .gitignore
#
# Config is committed; the vector index and logs are rebuilt locally.

*.log
*.tmp
*.db
*.db-journal
*.db-wal
*.db-shm

!config.json
!.gitignore
`

	return os.WriteFile(gitignorePath, []byte(gitignoreContent), 0o644)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variables in config values
func (m *Manager) expandEnvVars(config *Config) {
	config.LMStudioURL = expandString(config.LMStudioURL)
	config.Model = expandString(config.Model)
	config.EmbeddingModel = expandString(config.EmbeddingModel)
	config.Index.DBPath = expandString(config.Index.DBPath)
}

// expandString expands environment variables in a string.
// Supports $VAR and ${VAR} syntax; unknown variables are left as written.
func expandString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match
	})
}
