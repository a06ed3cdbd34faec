package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adgate/adgate/internal/auth/amazon"
	"github.com/adgate/adgate/internal/auth/token"
	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/provider"
)

func TestWriteError_CategoryMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		category string
	}{
		{
			name:     "configuration",
			err:      &config.ConfigurationError{Field: "client_id"},
			status:   http.StatusInternalServerError,
			category: CategoryConfiguration,
		},
		{
			name:     "rejected auth code",
			err:      &amazon.ExternalAuthError{Payload: `{"error":"invalid_grant"}`},
			status:   http.StatusUnauthorized,
			category: CategoryNeedsReauth,
		},
		{
			name:     "missing refresh token",
			err:      &token.MissingRefreshTokenError{CredentialID: "c1"},
			status:   http.StatusUnauthorized,
			category: CategoryNeedsReauth,
		},
		{
			name:     "refresh rejected",
			err:      &token.TokenRefreshError{CredentialID: "c1", Payload: "revoked"},
			status:   http.StatusUnauthorized,
			category: CategoryNeedsReauth,
		},
		{
			name:     "unauthorized after forced refresh",
			err:      &provider.AuthorizationError{CredentialID: "c1", Operation: "list_campaigns"},
			status:   http.StatusUnauthorized,
			category: CategoryNeedsReauth,
		},
		{
			name:     "credential missing",
			err:      &token.CredentialNotFoundError{CredentialID: "c1"},
			status:   http.StatusNotFound,
			category: CategoryNotFound,
		},
		{
			name:     "rate limited",
			err:      &provider.RateLimitExceededError{Attempts: 3},
			status:   http.StatusServiceUnavailable,
			category: CategoryTransient,
		},
		{
			name:     "retries exhausted",
			err:      &provider.RetriesExhaustedError{Attempts: 3},
			status:   http.StatusServiceUnavailable,
			category: CategoryTransient,
		},
		{
			name:     "provider rejection",
			err:      &provider.ProviderError{Status: 422, Body: "bad campaign"},
			status:   http.StatusBadGateway,
			category: CategoryProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if resp.Category != tt.category {
				t.Fatalf("expected category %s, got %s", tt.category, resp.Category)
			}
			if resp.Error == "" {
				t.Fatal("expected error message in body")
			}
		})
	}
}
