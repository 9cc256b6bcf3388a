package entity

import (
	"time"

	"github.com/harvestlab/repoharvester/internal/domain/valueobject"
)

// Repo is the enriched entity produced by the search stage and mutated by the
// readme and classify stages. Unique by RepoID.
type Repo struct {
	ID       int64
	Source   string
	RepoID   int64
	FullName string
	Owner    string
	URL      string

	Stars     int
	Forks     int
	Language  string
	IsFork    bool
	HasTopics bool

	CreatedAt time.Time
	UpdatedAt time.Time
	PushedAt  time.Time

	SearchSnapshotURI string
	SearchSnapshot    SearchSnapshot

	IngestMeta IngestMeta

	Enrichment     Enrichment
	Classification Classification
}

// SearchSnapshot is the small inline summary kept alongside the archived raw
// JSON blob referenced by SearchSnapshotURI. The full payload never round-trips
// through this struct; it is written to object storage once at ingest time.
type SearchSnapshot struct {
	SizeKB   int
	Stars    int
	Language string
}

// IngestMeta records provenance for a Repo row.
type IngestMeta struct {
	Bucket          string
	Query           string
	IngestedAt      time.Time
	PipelineVersion string
}

// Enrichment tracks the README and classification progress for a Repo.
type Enrichment struct {
	ReadmeFetched   bool
	ReadmeContent   *string
	ReadmeURI       string
	ReadmeUpdatedAt *time.Time
	AIClassified    bool
	ClassifiedAt    *time.Time
}

// Classification is the structured output of the classify stage.
type Classification struct {
	IsLibrary  bool
	Category   valueobject.Category
	Confidence float64
	Reason     string
}
