package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlab/repoharvester/internal/domain/valueobject"
)

func TestParseClassification_CleanJSON(t *testing.T) {
	raw := `{"is_library": true, "category": "cli", "confidence": 0.9, "reason": "it's a CLI tool"}`

	c, err := parseClassification(raw)
	require.NoError(t, err)
	assert.True(t, c.IsLibrary)
	assert.Equal(t, valueobject.CategoryCLI, c.Category)
	assert.InDelta(t, 0.9, c.Confidence, 0.0001)
}

func TestParseClassification_StripsSurroundingProse(t *testing.T) {
	raw := "Sure, here's the classification:\n```json\n{\"is_library\": false, \"category\": \"other\", \"confidence\": 0.4, \"reason\": \"unclear\"}\n```\nLet me know if you need anything else."

	c, err := parseClassification(raw)
	require.NoError(t, err)
	assert.False(t, c.IsLibrary)
	assert.Equal(t, valueobject.CategoryOther, c.Category)
}

func TestParseClassification_CoercesUnknownCategory(t *testing.T) {
	raw := `{"is_library": true, "category": "quantum_computing", "confidence": 0.5, "reason": "n/a"}`

	c, err := parseClassification(raw)
	require.NoError(t, err)
	assert.Equal(t, valueobject.CategoryOther, c.Category)
}

func TestParseClassification_InvalidJSON(t *testing.T) {
	_, err := parseClassification("not json at all")
	assert.Error(t, err)
}
