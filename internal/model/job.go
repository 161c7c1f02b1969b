package model

import "time"

// BackupJob is one finished export or import, kept as history.
type BackupJob struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Strategy   string    `json:"strategy,omitempty"`
	Status     string    `json:"status"`
	TotalItems int       `json:"total_items"`
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Backup job kinds and statuses.
const (
	JobKindExport = "export"
	JobKindImport = "import"

	JobStatusSuccess = "success"
	JobStatusError   = "error"
)
