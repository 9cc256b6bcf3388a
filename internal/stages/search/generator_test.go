package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketFor(t *testing.T) {
	cases := []struct {
		name   string
		from   time.Time
		prefix string
		want   string
	}{
		{"q1", time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC), "ml_repos", "ml_repos_2024_q1"},
		{"q2", time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), "ml_repos", "ml_repos_2024_q2"},
		{"q3", time.Date(2024, time.September, 30, 0, 0, 0, 0, time.UTC), "ml_repos", "ml_repos_2024_q3"},
		{"q4", time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), "ml_repos", "ml_repos_2024_q4"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, bucketFor(c.prefix, c.from))
		})
	}
}
