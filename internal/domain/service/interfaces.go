package service

import (
	"context"
	"time"
)

// Logger abstracts structured logging operations.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)

	// Info logs an info message.
	Info(msg string, args ...any)

	// Warn logs a warning message.
	Warn(msg string, args ...any)

	// Error logs an error message.
	Error(msg string, args ...any)

	// With returns a new logger with the given key-value pairs attached to
	// every subsequent log line.
	With(args ...any) Logger
}

// SearchResult is one page entry returned by the external hosting API.
type SearchResult struct {
	ID          int64
	FullName    string
	Name        string
	Owner       string
	HTMLURL     string
	Stars       int
	Forks       int
	Language    string
	Topics      []string
	Fork        bool
	Archived    bool
	SizeKB      int
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PushedAt    time.Time
}

// SearchPage is one page of search results plus the raw JSON body the page
// was decoded from, kept for archival.
type SearchPage struct {
	Items    []SearchResult
	Raw      [][]byte
	HasMore  bool
	NextPage int
}

// RepoClient abstracts the external hosting API's search and README
// endpoints.
type RepoClient interface {
	// Search runs one query page. Callers loop until HasMore is false.
	Search(ctx context.Context, query string, page int) (*SearchPage, error)

	// GetReadme fetches a repo's README. found is false when the repo has no
	// README (a normal, non-error outcome).
	GetReadme(ctx context.Context, fullName string) (content string, found bool, err error)
}

// LLMClient abstracts the classification model.
type LLMClient interface {
	// Generate runs one completion call against the fixed classify prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// ArchiveStore abstracts the object-storage archival sink.
type ArchiveStore interface {
	PutContent(ctx context.Context, path string, content []byte, contentType string) error
	GetContent(ctx context.Context, path string) ([]byte, error)
}

// LeaderLock abstracts the bootstrap distributed lock used to gate job
// generation to a single orchestrator instance.
type LeaderLock interface {
	// TryAcquire attempts to take the named lock for ttl. ok is false if
	// another process currently holds it.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (ok bool, err error)
}
