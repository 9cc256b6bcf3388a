package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harvestlab/repoharvester/internal/domain/entity"
	domainerrors "github.com/harvestlab/repoharvester/internal/domain/errors"
	"github.com/harvestlab/repoharvester/internal/domain/service"
	"github.com/harvestlab/repoharvester/internal/domain/valueobject"
	"github.com/harvestlab/repoharvester/internal/engine"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/jobstore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/repostore"
)

// Worker claims and processes classify_jobs rows. Classification is not
// partitioned across workers: the LLM call has no per-repo rate limit to
// spread.
type Worker struct {
	jobs   *jobstore.ClassifyJobStore
	repos  *repostore.RepoStore
	llm    service.LLMClient
	logger service.Logger
	holder engine.JobHolder
}

func NewWorker(jobs *jobstore.ClassifyJobStore, repos *repostore.RepoStore, llm service.LLMClient, logger service.Logger) *Worker {
	return &Worker{jobs: jobs, repos: repos, llm: llm, logger: logger}
}

func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, ok, err := w.jobs.AcquireNext(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	w.holder.Hold(job.ID)

	log := w.logger.With("classifyJobID", job.ID, "repoID", job.RepoID)

	repo, err := w.repos.GetByRepoID(ctx, "github", job.RepoID)
	if err != nil {
		log.Error("failed to load repo for classification", "err", err)
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error(), false); markErr != nil {
			return true, markErr
		}
		w.holder.Release()
		return true, nil
	}

	if repo.Enrichment.ReadmeContent == nil || *repo.Enrichment.ReadmeContent == "" {
		validationErr := domainerrors.Validation(fmt.Errorf("repo %d has no README content to classify", job.RepoID))
		log.Error("classify job failed", "err", validationErr)
		if markErr := w.jobs.MarkFailed(ctx, job.ID, validationErr.Error(), false); markErr != nil {
			return true, markErr
		}
		w.holder.Release()
		return true, nil
	}

	readme := *repo.Enrichment.ReadmeContent
	const promptReadmeLimit = 2000
	if len(readme) > promptReadmeLimit {
		readme = readme[:promptReadmeLimit]
	}

	prompt := buildPrompt(repo.FullName, readme)

	raw, err := w.llm.Generate(ctx, prompt)
	if err != nil {
		switch domainerrors.ClassifyErr(err) {
		case domainerrors.KindRateLimited:
			log.Warn("classify job throttled", "err", err)
			if markErr := w.jobs.MarkThrottled(ctx, job.ID, err.Error()); markErr != nil {
				return true, markErr
			}
			w.holder.Release()
			engine.WaitForRateLimit(ctx, err)
		case domainerrors.KindFatal:
			log.Error("classify job failed fatally", "err", err)
			if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error(), true); markErr != nil {
				return true, markErr
			}
			w.holder.Release()
		default:
			log.Error("classify job failed", "err", err)
			if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error(), false); markErr != nil {
				return true, markErr
			}
			w.holder.Release()
		}
		return true, nil
	}

	classification, err := parseClassification(raw)
	if err != nil {
		// A malformed LLM response is a validation failure: it counts
		// against attempts like any other retryable error, but is never
		// fatal on its own.
		log.Error("failed to parse classification", "err", err)
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error(), false); markErr != nil {
			return true, markErr
		}
		w.holder.Release()
		return true, nil
	}

	if err := w.repos.SetClassification(ctx, job.RepoID, classification); err != nil {
		return true, err
	}
	if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
		return true, err
	}
	w.holder.Release()

	return true, nil
}

func (w *Worker) RecoverStale(ctx context.Context) (int64, error) {
	return w.jobs.RecoverStale(ctx)
}

func (w *Worker) ActiveCount(ctx context.Context) (int, error) {
	return w.jobs.CountActive(ctx)
}

// Cleanup releases any job this worker still holds back to pending, so a
// crash or shutdown mid-process doesn't leave it stuck in running.
func (w *Worker) Cleanup(ctx context.Context) error {
	id, ok := w.holder.Held()
	if !ok {
		return nil
	}
	if err := w.jobs.Release(ctx, id); err != nil {
		return err
	}
	w.holder.Release()
	return nil
}

type classifyResponse struct {
	IsLibrary  bool    `json:"is_library"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func buildPrompt(fullName, readme string) string {
	var sb strings.Builder
	sb.WriteString("You are classifying a GitHub repository from its README.\n")
	sb.WriteString("Repository: ")
	sb.WriteString(fullName)
	sb.WriteString("\n\nCategories: ")
	for i, c := range valueobject.AllCategories {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.String())
	}
	sb.WriteString("\n\nRespond with strict JSON only, matching this shape:\n")
	sb.WriteString(`{"is_library": bool, "category": string, "confidence": number between 0 and 1, "reason": string}`)
	sb.WriteString("\n\nREADME:\n")
	sb.WriteString(readme)
	return sb.String()
}

func parseClassification(raw string) (entity.Classification, error) {
	trimmed := extractJSONObject(raw)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &keys); err != nil {
		return entity.Classification{}, fmt.Errorf("unmarshal classify response: %w", err)
	}
	for _, k := range []string{"is_library", "category", "confidence", "reason"} {
		if _, ok := keys[k]; !ok {
			return entity.Classification{}, fmt.Errorf("classify response missing key %q", k)
		}
	}

	var resp classifyResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return entity.Classification{}, fmt.Errorf("unmarshal classify response: %w", err)
	}

	return entity.Classification{
		IsLibrary:  resp.IsLibrary,
		Category:   valueobject.Category(resp.Category).Coerce(),
		Confidence: resp.Confidence,
		Reason:     resp.Reason,
	}, nil
}

// extractJSONObject trims any prose the model wraps the JSON object in,
// taking the substring between the first '{' and the last '}'.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
