package token

import "fmt"

// CredentialNotFoundError means no active credential row exists for the id.
type CredentialNotFoundError struct {
	CredentialID string
}

func (e *CredentialNotFoundError) Error() string {
	return fmt.Sprintf("credential not found or inactive: %s", e.CredentialID)
}

// MissingRefreshTokenError means the credential cannot be refreshed and the
// advertiser must re-authorize.
type MissingRefreshTokenError struct {
	CredentialID string
}

func (e *MissingRefreshTokenError) Error() string {
	return fmt.Sprintf("credential %s has no refresh token, re-authorization required", e.CredentialID)
}

// TokenRefreshError means the provider rejected a refresh attempt. Payload
// carries the provider's error body verbatim; the stored credential is left
// untouched.
type TokenRefreshError struct {
	CredentialID string
	Payload      string
	Err          error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed for credential %s: %s", e.CredentialID, e.Payload)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }
