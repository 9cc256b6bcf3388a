package engine

import (
	"context"
	"time"

	domainerrors "github.com/harvestlab/repoharvester/internal/domain/errors"
)

// rateLimitGrace is added on top of the external API's reported reset time,
// since reset timestamps are granular to the second and clocks drift.
const rateLimitGrace = 2 * time.Second

// WaitForRateLimit blocks until err's reported rate-limit reset time has
// passed (plus a small grace period), or ctx is cancelled first. It is a
// no-op if err carries no reset time.
func WaitForRateLimit(ctx context.Context, err error) {
	resetAt, ok := domainerrors.ResetTimeOf(err)
	if !ok {
		return
	}
	wait := time.Until(resetAt.Add(rateLimitGrace))
	if wait <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
