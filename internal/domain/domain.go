package domain

import "time"

type AttemptStatus string

const (
	AttemptStatusSucceeded AttemptStatus = "succeeded"
	AttemptStatusFailed    AttemptStatus = "failed"
	AttemptStatusStale     AttemptStatus = "stale"
)

// SummaryRecord is one resolved upload attempt. Uploaded bytes are never kept.
type SummaryRecord struct {
	ID         string
	UserID     int64
	ChatID     int64
	FileName   string
	FileSize   int64
	Status     AttemptStatus
	Summary    string
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}
