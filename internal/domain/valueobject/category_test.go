package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategory_Coerce(t *testing.T) {
	assert.Equal(t, CategoryMLAI, CategoryMLAI.Coerce())
	assert.Equal(t, CategoryOther, Category("not-a-real-category").Coerce())
}

func TestAllCategories_AreAllValid(t *testing.T) {
	for _, c := range AllCategories {
		assert.True(t, c.IsValid())
	}
}
