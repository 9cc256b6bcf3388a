// Package repostore implements the Repo entity's persistence against
// Postgres: bulk ingest from the search stage, and single-row mutation from
// the readme and classify stages.
package repostore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harvestlab/repoharvester/internal/domain/entity"
	"github.com/harvestlab/repoharvester/internal/domain/valueobject"
)

// RepoStore is the Postgres-backed repository for the repos table.
type RepoStore struct {
	db *sql.DB
}

func NewRepoStore(db *sql.DB) *RepoStore {
	return &RepoStore{db: db}
}

// BulkInsert inserts every repo in repos, skipping any whose (source,
// repo_id) pair already exists. It returns the number of rows actually
// inserted, mirroring the original bulk-insert-unordered + nInserted idiom.
func (s *RepoStore) BulkInsert(ctx context.Context, repos []entity.Repo) (inserted int, err error) {
	if len(repos) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("repostore: begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO repos (
			source, repo_id, full_name, owner, url,
			stars, forks, language, is_fork, has_topics,
			created_at, updated_at, pushed_at,
			search_snapshot_uri, snapshot_size_kb, snapshot_stars, snapshot_language,
			bucket, query, ingested_at, pipeline_version
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21
		)
		ON CONFLICT (source, repo_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("repostore: prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range repos {
		res, execErr := stmt.ExecContext(ctx,
			r.Source, r.RepoID, r.FullName, r.Owner, r.URL,
			r.Stars, r.Forks, r.Language, r.IsFork, r.HasTopics,
			r.CreatedAt, r.UpdatedAt, r.PushedAt,
			r.SearchSnapshotURI, r.SearchSnapshot.SizeKB, r.SearchSnapshot.Stars, r.SearchSnapshot.Language,
			r.IngestMeta.Bucket, r.IngestMeta.Query, r.IngestMeta.IngestedAt, r.IngestMeta.PipelineVersion,
		)
		if execErr != nil {
			return inserted, fmt.Errorf("repostore: bulk insert row (repo_id=%d): %w", r.RepoID, execErr)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("repostore: commit bulk insert: %w", err)
	}
	return inserted, nil
}

// GetByRepoID fetches a repo by its external (source, repo_id) key.
func (s *RepoStore) GetByRepoID(ctx context.Context, source string, repoID int64) (*entity.Repo, error) {
	row := s.db.QueryRowContext(ctx, selectRepoColumns+` WHERE source = $1 AND repo_id = $2`, source, repoID)
	return scanRepo(row)
}

// SetReadme stores a fetched README for a repo: the first 4000 bytes inline
// plus the archive uri of the full body. Repos without a README go through
// SetNoReadme instead.
func (s *RepoStore) SetReadme(ctx context.Context, repoID int64, content string, uri string) error {
	truncated := content
	const inlineLimit = 4000
	if len(truncated) > inlineLimit {
		truncated = truncated[:inlineLimit]
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE repos
		SET readme_fetched = TRUE, readme_content = $2, readme_uri = $3, readme_updated_at = now()
		WHERE repo_id = $1 AND readme_fetched = FALSE
	`, repoID, truncated, uri)
	if err != nil {
		return fmt.Errorf("repostore: set readme (repo_id=%d): %w", repoID, err)
	}
	return nil
}

// SetNoReadme marks the readme_fetched flag true without content, for repos
// that genuinely have no README file.
func (s *RepoStore) SetNoReadme(ctx context.Context, repoID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE repos SET readme_fetched = TRUE, readme_updated_at = now()
		WHERE repo_id = $1 AND readme_fetched = FALSE
	`, repoID)
	if err != nil {
		return fmt.Errorf("repostore: set no-readme (repo_id=%d): %w", repoID, err)
	}
	return nil
}

// SetClassification stores the classify stage's structured output for a
// repo. The ai_classified flag is forward-monotonic: once set, a second call
// is a no-op.
func (s *RepoStore) SetClassification(ctx context.Context, repoID int64, c entity.Classification) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE repos
		SET ai_classified = TRUE, is_library = $2, category = $3, confidence = $4, classify_reason = $5, classified_at = now()
		WHERE repo_id = $1 AND ai_classified = FALSE
	`, repoID, c.IsLibrary, c.Category.String(), c.Confidence, c.Reason)
	if err != nil {
		return fmt.Errorf("repostore: set classification (repo_id=%d): %w", repoID, err)
	}
	return nil
}

// CountNeedingReadme reports how many repos have not yet had their README
// fetched.
func (s *RepoStore) CountNeedingReadme(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM repos WHERE readme_fetched = FALSE`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repostore: count needing readme: %w", err)
	}
	return n, nil
}

// ListNeedingReadme returns up to limit repos that have not yet had a
// readme job enqueued for them.
func (s *RepoStore) ListNeedingReadme(ctx context.Context, limit int) ([]entity.Repo, error) {
	rows, err := s.db.QueryContext(ctx, selectRepoColumns+`
		WHERE readme_fetched = FALSE
		  AND NOT EXISTS (
		      SELECT 1 FROM readme_jobs j
		      WHERE j.repo_id = repos.repo_id AND j.status NOT IN ('failed')
		  )
		ORDER BY id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("repostore: list needing readme: %w", err)
	}
	defer rows.Close()
	return scanRepoRows(rows)
}

// ListNeedingClassification returns up to limit repos whose README has been
// fetched but have not yet been classified.
func (s *RepoStore) ListNeedingClassification(ctx context.Context, limit int) ([]entity.Repo, error) {
	rows, err := s.db.QueryContext(ctx, selectRepoColumns+`
		WHERE readme_fetched = TRUE AND ai_classified = FALSE
		  AND NOT EXISTS (
		      SELECT 1 FROM classify_jobs j
		      WHERE j.repo_id = repos.repo_id AND j.status NOT IN ('failed')
		  )
		ORDER BY id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("repostore: list needing classification: %w", err)
	}
	defer rows.Close()
	return scanRepoRows(rows)
}

const selectRepoColumns = `
	SELECT id, source, repo_id, full_name, owner, url,
	       stars, forks, language, is_fork, has_topics,
	       created_at, updated_at, pushed_at,
	       search_snapshot_uri, snapshot_size_kb, snapshot_stars, snapshot_language,
	       bucket, query, ingested_at, pipeline_version,
	       readme_fetched, readme_content, readme_uri, readme_updated_at,
	       ai_classified, is_library, category, confidence, classify_reason, classified_at
	FROM repos
`

func scanRepo(row *sql.Row) (*entity.Repo, error) {
	var r entity.Repo
	var category string
	if err := row.Scan(
		&r.ID, &r.Source, &r.RepoID, &r.FullName, &r.Owner, &r.URL,
		&r.Stars, &r.Forks, &r.Language, &r.IsFork, &r.HasTopics,
		&r.CreatedAt, &r.UpdatedAt, &r.PushedAt,
		&r.SearchSnapshotURI, &r.SearchSnapshot.SizeKB, &r.SearchSnapshot.Stars, &r.SearchSnapshot.Language,
		&r.IngestMeta.Bucket, &r.IngestMeta.Query, &r.IngestMeta.IngestedAt, &r.IngestMeta.PipelineVersion,
		&r.Enrichment.ReadmeFetched, &r.Enrichment.ReadmeContent, &r.Enrichment.ReadmeURI, &r.Enrichment.ReadmeUpdatedAt,
		&r.Enrichment.AIClassified, &r.Classification.IsLibrary, &category, &r.Classification.Confidence,
		&r.Classification.Reason, &r.Enrichment.ClassifiedAt,
	); err != nil {
		return nil, err
	}
	r.Classification.Category = valueobject.Category(category)
	return &r, nil
}

func scanRepoRows(rows *sql.Rows) ([]entity.Repo, error) {
	var out []entity.Repo
	for rows.Next() {
		var r entity.Repo
		var category string
		if err := rows.Scan(
			&r.ID, &r.Source, &r.RepoID, &r.FullName, &r.Owner, &r.URL,
			&r.Stars, &r.Forks, &r.Language, &r.IsFork, &r.HasTopics,
			&r.CreatedAt, &r.UpdatedAt, &r.PushedAt,
			&r.SearchSnapshotURI, &r.SearchSnapshot.SizeKB, &r.SearchSnapshot.Stars, &r.SearchSnapshot.Language,
			&r.IngestMeta.Bucket, &r.IngestMeta.Query, &r.IngestMeta.IngestedAt, &r.IngestMeta.PipelineVersion,
			&r.Enrichment.ReadmeFetched, &r.Enrichment.ReadmeContent, &r.Enrichment.ReadmeURI, &r.Enrichment.ReadmeUpdatedAt,
			&r.Enrichment.AIClassified, &r.Classification.IsLibrary, &category, &r.Classification.Confidence,
			&r.Classification.Reason, &r.Enrichment.ClassifiedAt,
		); err != nil {
			return nil, err
		}
		r.Classification.Category = valueobject.Category(category)
		out = append(out, r)
	}
	return out, rows.Err()
}
