// Package config provides local-first configuration for pacer.
//
// All configuration lives in the project's .pacer/ directory:
//
//	.pacer/
//	├── config.json        # Main configuration (committed to git)
//	├── .gitignore         # Ignores the index database and logs
//	└── index.db           # Vector index (sqlite store)
//
// config.json holds the LM Studio endpoint, the answer marker, scheduler
// limits and search settings:
//
//	{
//	  "lm_studio_url": "http://localhost:1234",
//	  "marker": "<final>",
//	  "scheduler": {"concurrency": 2, "max_queue_size": 1000},
//	  "index": {"store": "sqlite", "db_path": ".pacer/index.db", "chunk_lines": 40},
//	  "search": {"k": 10, "candidates": 50}
//	}
//
// Values can reference environment variables with $VAR or ${VAR}:
//
//	{
//	  "lm_studio_url": "${LM_STUDIO_URL}"
//	}
//
// Example usage:
//
//	manager := config.NewManager("/path/to/project")
//	if err := manager.Load(); err != nil {
//		return err
//	}
//
//	cfg := manager.Get()
//	_ = manager.Set("scheduler.concurrency", "4")
package config
