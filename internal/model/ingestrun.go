package model

import "time"

// IngestRunStatus tracks the lifecycle of a batch ingestion run.
type IngestRunStatus string

const (
	IngestRunning  IngestRunStatus = "running"
	IngestComplete IngestRunStatus = "complete"
	IngestFailed   IngestRunStatus = "failed"
)

// IngestRun summarizes one batch run over a log directory. The counters make
// dedup behavior observable: re-ingesting the same files shows up as
// DuplicatesSkipped instead of SamplesInserted.
type IngestRun struct {
	ID          string          `json:"id"`
	LogDir      string          `json:"log_dir"`
	Status      IngestRunStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	FilesScanned      int    `json:"files_scanned"`
	LinesMatched      int    `json:"lines_matched"`
	SamplesInserted   int    `json:"samples_inserted"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	ParseFailures     int    `json:"parse_failures"`
	Error             string `json:"error,omitempty"`
}
