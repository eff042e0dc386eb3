package indexer

import "time"

// Status is where a file is in the indexing pipeline.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusIndexing  Status = "indexing"
	StatusDone      Status = "done"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// FileState records the outcome for one file.
type FileState struct {
	Path      string    `json:"path"`
	Status    Status    `json:"status"`
	Chunks    int       `json:"chunks"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary totals one IndexFiles call.
type Summary struct {
	Files     int `json:"files"`
	Indexed   int `json:"indexed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Chunks    int `json:"chunks"`
}
