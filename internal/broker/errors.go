package broker

import (
	"fmt"
	"time"

	"github.com/epic1st/execengine/internal/resilience"
)

// EnvironmentMismatchError is raised by the environment guard; the request
// is never forwarded to the transport.
type EnvironmentMismatchError struct {
	Configured, Requested Environment
}

func (e *EnvironmentMismatchError) Error() string {
	return fmt.Sprintf("environment mismatch: adapter configured for %s, request targeted %s", e.Configured, e.Requested)
}

// AuthenticationFailedError maps a 401/403 transport outcome.
type AuthenticationFailedError struct {
	Detail string
}

func (e *AuthenticationFailedError) Error() string {
	return "broker authentication failed: " + e.Detail
}

// Category reports NonRetryable, as CategorizeHTTPStatus does for 4xx.
func (e *AuthenticationFailedError) Category() resilience.Category { return resilience.NonRetryable }

func (e *AuthenticationFailedError) RetryAfter() time.Duration { return 0 }

// RateLimitedError maps a 429 transport outcome.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("broker rate limited, retry after %s", e.RetryAfter)
}

// MultiLegValidationError names the failed constraint on a multi-leg
// submission.
type MultiLegValidationError struct {
	Reason string
}

func (e *MultiLegValidationError) Error() string {
	return "invalid multi-leg order: " + e.Reason
}
