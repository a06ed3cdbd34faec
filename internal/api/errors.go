package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adgate/adgate/internal/auth/amazon"
	"github.com/adgate/adgate/internal/auth/token"
	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/provider"
)

// Error categories the UI dispatches on: "reconnect your account" vs
// "try again" vs "fix deployment".
const (
	CategoryNeedsReauth   = "needs_reauth"
	CategoryConfiguration = "configuration"
	CategoryTransient     = "transient"
	CategoryNotFound      = "not_found"
	CategoryProvider      = "provider"
)

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

// writeError maps the typed error taxonomy onto HTTP statuses and UI
// categories. Callers never have to match on message text.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	category := CategoryProvider

	var (
		confErr      *config.ConfigurationError
		authCodeErr  *amazon.ExternalAuthError
		notFoundErr  *token.CredentialNotFoundError
		missingRT    *token.MissingRefreshTokenError
		refreshErr   *token.TokenRefreshError
		unauthorized *provider.AuthorizationError
		rateLimited  *provider.RateLimitExceededError
		exhausted    *provider.RetriesExhaustedError
		providerErr  *provider.ProviderError
	)

	switch {
	case errors.As(err, &confErr):
		status, category = http.StatusInternalServerError, CategoryConfiguration
	case errors.As(err, &notFoundErr):
		status, category = http.StatusNotFound, CategoryNotFound
	case errors.As(err, &authCodeErr),
		errors.As(err, &missingRT),
		errors.As(err, &refreshErr),
		errors.As(err, &unauthorized):
		status, category = http.StatusUnauthorized, CategoryNeedsReauth
	case errors.As(err, &rateLimited), errors.As(err, &exhausted):
		status, category = http.StatusServiceUnavailable, CategoryTransient
	case errors.As(err, &providerErr):
		status, category = http.StatusBadGateway, CategoryProvider
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Category: category})
}
