package entity

import (
	"time"

	"github.com/harvestlab/repoharvester/internal/domain/valueobject"
)

// JobHeader is the common envelope shared by every stage's job table. Each
// stage embeds it alongside a stage-specific payload struct.
type JobHeader struct {
	ID           int64
	Status       valueobject.JobStatus
	Attempts     int
	MaxAttempts  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
}

// DateWindow is a backfill window. Both the From and To dates are included
// in the search query's date range; the search generator starts the next
// window one day after To.
type DateWindow struct {
	From time.Time
	To   time.Time
}

// SearchJob is one unit of work for the search stage: run one query over one
// date window.
type SearchJob struct {
	JobHeader
	Bucket        string
	QueryTemplate string
	Window        DateWindow
	ReposCount    *int
}

// ReadmeJob is one unit of work for the readme stage: fetch one repo's README.
type ReadmeJob struct {
	JobHeader
	RepoID   int64
	FullName string
}

// ClassifyJob is one unit of work for the classify stage: classify one repo.
type ClassifyJob struct {
	JobHeader
	RepoID   int64
	FullName string
}
