package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_IsValid(t *testing.T) {
	valid := []JobStatus{JobStatusPending, JobStatusThrottled, JobStatusRunning, JobStatusDone, JobStatusFailed, JobStatusNoReadme}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "expected %q to be valid", s)
	}
	assert.False(t, JobStatus("bogus").IsValid())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.True(t, JobStatusDone.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusNoReadme.IsTerminal())
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusThrottled.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
}

func TestParseJobStatus(t *testing.T) {
	s, err := ParseJobStatus("throttled")
	require.NoError(t, err)
	assert.Equal(t, JobStatusThrottled, s)

	_, err = ParseJobStatus("not-a-status")
	assert.Error(t, err)
}
