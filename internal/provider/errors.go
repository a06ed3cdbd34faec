package provider

import "fmt"

// AuthorizationError means a provider call returned 401 even after one forced
// token refresh. The advertiser needs to re-authorize.
type AuthorizationError struct {
	CredentialID string
	Operation    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s unauthorized for credential %s after forced refresh", e.Operation, e.CredentialID)
}

// ProviderError is a non-transient provider rejection (4xx other than
// 401/429), or the last transient status when retries run out.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Body)
}

// RateLimitExceededError is surfaced when the attempt budget is spent and the
// last response was a rate limit.
type RateLimitExceededError struct {
	Attempts int
	Err      error
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitExceededError) Unwrap() error { return e.Err }

// RetriesExhaustedError wraps the last transient error once the configured
// attempt budget is spent.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }
