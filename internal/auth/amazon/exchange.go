package amazon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/db/models"
	"github.com/adgate/adgate/internal/oplog"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// ExternalAuthError means the provider rejected the authorization code
// (expired or already used). The advertiser must restart the OAuth flow.
type ExternalAuthError struct {
	Payload string
}

func (e *ExternalAuthError) Error() string {
	return fmt.Sprintf("provider rejected authorization code: %s", e.Payload)
}

// Exchanger converts authorization codes into stored platform credentials.
type Exchanger struct {
	db         *gorm.DB
	cfg        config.Provider
	recorder   oplog.Recorder
	httpClient *http.Client
}

// NewExchanger creates an Exchanger. The http client is used for the token
// and profiles endpoints.
func NewExchanger(db *gorm.DB, cfg config.Provider, recorder oplog.Recorder) *Exchanger {
	return &Exchanger{
		db:       db,
		cfg:      cfg,
		recorder: recorder,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
}

// Exchange swaps an authorization code for a token pair, picks the
// advertiser's profile, and upserts the credential row for
// (advertiserID, platform). Returns the stored profile id.
func (e *Exchanger) Exchange(ctx context.Context, code, advertiserID, redirectURI string) (string, error) {
	if e.cfg.ClientID == "" || e.cfg.ClientSecret == "" {
		return "", &config.ConfigurationError{Field: "provider client credentials"}
	}

	oauthCfg := OAuthConfig(e.cfg, redirectURI)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		authErr := asExternalAuthError(err)
		e.recorder.Record(models.OperationLogEntry{
			AdvertiserID:  advertiserID,
			PlatformID:    e.cfg.PlatformID,
			OperationType: models.OpInitialConnection,
			Status:        models.StatusError,
			ErrorMessage:  authErr.Payload,
		})
		return "", authErr
	}

	// A credential without a refresh token can never be refreshed; refuse
	// to store it and make the advertiser restart the flow.
	if tok.RefreshToken == "" {
		authErr := &ExternalAuthError{Payload: "provider returned no refresh token"}
		e.recorder.Record(models.OperationLogEntry{
			AdvertiserID:  advertiserID,
			PlatformID:    e.cfg.PlatformID,
			OperationType: models.OpInitialConnection,
			Status:        models.StatusError,
			ErrorMessage:  authErr.Payload,
		})
		return "", authErr
	}

	profileID := e.cfg.ProfileIDOverride
	if profileID == "" {
		profiles, err := FetchProfiles(ctx, e.httpClient, e.cfg.ProfilesURL, e.cfg.ClientID, tok.AccessToken)
		if err != nil {
			// A usable token was obtained; the exchange still succeeds.
			log.Printf("⚠️ Failed to fetch profiles for advertiser %s: %v", advertiserID, err)
		} else if len(profiles) == 0 {
			log.Printf("⚠️ Provider returned no profiles for advertiser %s", advertiserID)
		}
		profileID = FirstProfileID(profiles)
	}

	if err := e.upsertCredential(advertiserID, profileID, tok); err != nil {
		e.recorder.Record(models.OperationLogEntry{
			AdvertiserID:  advertiserID,
			PlatformID:    e.cfg.PlatformID,
			OperationType: models.OpInitialConnection,
			Status:        models.StatusError,
			ErrorMessage:  err.Error(),
		})
		return "", fmt.Errorf("failed to save credential: %w", err)
	}

	e.recorder.Record(models.OperationLogEntry{
		AdvertiserID:  advertiserID,
		PlatformID:    e.cfg.PlatformID,
		OperationType: models.OpInitialConnection,
		Status:        models.StatusSuccess,
	})
	log.Printf("✅ Connected advertiser %s (profile: %s)", advertiserID, profileID)
	return profileID, nil
}

// upsertCredential writes the full token tuple, preserving the row UUID when
// the pair was connected before.
func (e *Exchanger) upsertCredential(advertiserID, profileID string, tok *oauth2.Token) error {
	var existing models.PlatformCredential
	id := uuid.New().String()
	err := e.db.Where("advertiser_id = ? AND platform_id = ?", advertiserID, e.cfg.PlatformID).
		First(&existing).Error
	if err == nil {
		id = existing.ID
	}

	cred := models.PlatformCredential{
		ID:             id,
		AdvertiserID:   advertiserID,
		PlatformID:     e.cfg.PlatformID,
		ProfileID:      profileID,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: tok.Expiry,
		IsActive:       true,
		UpdatedAt:      time.Now(),
	}
	return e.db.Save(&cred).Error
}

// asExternalAuthError extracts the provider's error payload when present.
func asExternalAuthError(err error) *ExternalAuthError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &ExternalAuthError{Payload: string(retrieveErr.Body)}
	}
	return &ExternalAuthError{Payload: err.Error()}
}
