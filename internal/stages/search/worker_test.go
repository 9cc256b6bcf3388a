package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harvestlab/repoharvester/internal/domain/entity"
	"github.com/harvestlab/repoharvester/internal/domain/service"
)

func TestBuildQuery_SubstitutesFromAndToDate(t *testing.T) {
	window := entity.DateWindow{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
	}

	got := buildQuery("created:{from_date}..{to_date} stars:>20", window)
	assert.Equal(t, "created:2026-01-01..2026-01-08 stars:>20", got)
}

func TestBuildQuery_NoPlaceholdersLeavesTemplateUnchanged(t *testing.T) {
	window := entity.DateWindow{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
	}

	got := buildQuery("language:go stars:>10", window)
	assert.Equal(t, "language:go stars:>10", got)
}

func TestIsValidRepo(t *testing.T) {
	fresh := service.SearchResult{FullName: "foo/bar", SizeKB: 100, PushedAt: time.Now()}
	assert.True(t, isValidRepo(fresh))

	tooSmall := fresh
	tooSmall.SizeKB = 10
	assert.False(t, isValidRepo(tooSmall))

	archived := fresh
	archived.Archived = true
	assert.False(t, isValidRepo(archived))

	stale := fresh
	stale.PushedAt = time.Now().Add(-60 * 24 * time.Hour)
	assert.False(t, isValidRepo(stale))

	noName := fresh
	noName.FullName = ""
	assert.False(t, isValidRepo(noName))
}
