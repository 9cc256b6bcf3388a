package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyErr_RateLimit(t *testing.T) {
	err := &RateLimitError{StatusCode: 429, ResetAt: time.Now().Add(time.Minute)}
	assert.Equal(t, KindRateLimited, ClassifyErr(err))
}

func TestClassifyErr_ProcessErrorKinds(t *testing.T) {
	assert.Equal(t, KindTransient, ClassifyErr(Transient(errors.New("boom"))))
	assert.Equal(t, KindValidation, ClassifyErr(Validation(errors.New("bad json"))))
	assert.Equal(t, KindPermanentNotFound, ClassifyErr(NotFound(errors.New("404"))))
	assert.Equal(t, KindFatal, ClassifyErr(Fatal(errors.New("invariant violated"))))
}

func TestClassifyErr_PlainErrorDefaultsToTransient(t *testing.T) {
	assert.Equal(t, KindTransient, ClassifyErr(errors.New("plain")))
}

func TestProcessError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	wrapped := Transient(inner)
	assert.ErrorIs(t, wrapped, inner)
}
