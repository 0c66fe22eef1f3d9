package engine

import (
	"time"

	"github.com/nself-org/flowcore/pkg/models"
)

// RetryDelay computes the backoff before the given attempt (1-based):
// fixed -> delay, linear -> delay*attempt, exponential -> delay*2^(attempt-1),
// clamped to MaxRetryDelayMs when set.
func RetryDelay(settings models.StepSettings, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := settings.RetryDelayMs
	var ms int64
	switch settings.RetryBackoff {
	case models.LinearBackoff:
		ms = base * int64(attempt)
	case models.ExponentialBackoff:
		ms = base * (1 << uint(attempt-1))
	default:
		ms = base
	}
	if settings.MaxRetryDelayMs > 0 && ms > settings.MaxRetryDelayMs {
		ms = settings.MaxRetryDelayMs
	}
	return time.Duration(ms) * time.Millisecond
}
