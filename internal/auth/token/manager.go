// Package token owns the credential token lifecycle: the read path used by
// every API call site and the refresh path that keeps stored tokens valid.
package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/adgate/adgate/internal/auth/amazon"
	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/db/models"
	"github.com/adgate/adgate/internal/oplog"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// defaultExpiresIn is assumed when the provider omits expires_in.
const defaultExpiresIn = 3600 * time.Second

// Token is the validated access material handed to API call sites.
// AdvertiserID and PlatformID ride along for audit logging.
type Token struct {
	AccessToken  string
	ProfileID    string
	AdvertiserID string
	PlatformID   string
	ExpiresAt    time.Time
}

// Manager handles token lifecycle including refresh-before-expiry.
type Manager struct {
	db         *gorm.DB
	cfg        config.Provider
	recorder   oplog.Recorder
	httpClient *http.Client

	// one mutex per credential serializes refreshes so concurrent callers
	// do not burn provider-side rotation slots
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a new token manager.
func NewManager(db *gorm.DB, cfg config.Provider, recorder oplog.Recorder) *Manager {
	return &Manager{
		db:       db,
		cfg:      cfg,
		recorder: recorder,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		locks: make(map[string]*sync.Mutex),
	}
}

// GetValidToken returns an access token guaranteed to be outside the skew
// window, refreshing first when the stored one is stale. The fast path does
// no network I/O.
func (m *Manager) GetValidToken(ctx context.Context, credentialID string) (*Token, error) {
	cred, err := m.load(credentialID)
	if err != nil {
		return nil, err
	}

	if !cred.Stale(time.Now(), m.cfg.SkewWindow) {
		return tokenOf(cred), nil
	}

	log.Printf("⚠️ Token for credential %s is expired/expiring, refreshing...", credentialID)
	if err := m.refresh(ctx, credentialID, false); err != nil {
		return nil, err
	}

	cred, err = m.load(credentialID)
	if err != nil {
		return nil, err
	}
	return tokenOf(cred), nil
}

// ForceRefresh refreshes regardless of staleness and returns the new token.
// Used when the provider invalidated a token out-of-band (401 recovery).
func (m *Manager) ForceRefresh(ctx context.Context, credentialID string) (*Token, error) {
	if err := m.refresh(ctx, credentialID, true); err != nil {
		return nil, err
	}
	cred, err := m.load(credentialID)
	if err != nil {
		return nil, err
	}
	return tokenOf(cred), nil
}

// Refresh renews the access token for one credential unconditionally.
func (m *Manager) Refresh(ctx context.Context, credentialID string) error {
	return m.refresh(ctx, credentialID, true)
}

// Deactivate retires a credential without deleting it.
func (m *Manager) Deactivate(credentialID string) error {
	res := m.db.Model(&models.PlatformCredential{}).
		Where("id = ?", credentialID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &CredentialNotFoundError{CredentialID: credentialID}
	}
	log.Printf("🔒 Credential %s deactivated", credentialID)
	return nil
}

func (m *Manager) load(credentialID string) (*models.PlatformCredential, error) {
	var cred models.PlatformCredential
	if err := m.db.Where("id = ? AND is_active = ?", credentialID, true).First(&cred).Error; err != nil {
		return nil, &CredentialNotFoundError{CredentialID: credentialID}
	}
	return &cred, nil
}

func (m *Manager) lockFor(credentialID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[credentialID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[credentialID] = l
	}
	return l
}

// refresh renews one credential's access token. When force is false a caller
// that lost the race to a concurrent refresh skips the provider call and
// reuses the freshly stored token.
func (m *Manager) refresh(ctx context.Context, credentialID string, force bool) error {
	lock := m.lockFor(credentialID)
	lock.Lock()
	defer lock.Unlock()

	var cred models.PlatformCredential
	if err := m.db.First(&cred, "id = ?", credentialID).Error; err != nil {
		return &CredentialNotFoundError{CredentialID: credentialID}
	}

	if !force && !cred.Stale(time.Now(), m.cfg.SkewWindow) {
		return nil
	}

	if cred.RefreshToken == "" {
		refreshErr := &MissingRefreshTokenError{CredentialID: credentialID}
		m.recordRefresh(&cred, models.StatusError, refreshErr.Error())
		return refreshErr
	}

	oauthCfg := amazon.OAuthConfig(m.cfg, "")
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	source := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	newToken, err := source.Token()
	if err != nil {
		refreshErr := asTokenRefreshError(credentialID, err)
		log.Printf("❌ Refresh failed for credential %s: %s", credentialID, refreshErr.Payload)
		m.recordRefresh(&cred, models.StatusError, refreshErr.Payload)
		return refreshErr
	}

	expiry := newToken.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(defaultExpiresIn)
	}

	// Full tuple written together so the row is always self-consistent.
	cred.AccessToken = newToken.AccessToken
	cred.TokenExpiresAt = expiry
	if newToken.RefreshToken != "" && newToken.RefreshToken != cred.RefreshToken {
		log.Printf("🔄 Rotating refresh token for credential %s", credentialID)
		cred.RefreshToken = newToken.RefreshToken
	}
	cred.UpdatedAt = time.Now()
	if err := m.db.Save(&cred).Error; err != nil {
		m.recordRefresh(&cred, models.StatusError, err.Error())
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}

	m.recordRefresh(&cred, models.StatusSuccess, "")
	log.Printf("✅ Refreshed token for credential %s (expires: %s)", credentialID, expiry.Format(time.RFC3339))
	return nil
}

func (m *Manager) recordRefresh(cred *models.PlatformCredential, status, errMsg string) {
	m.recorder.Record(models.OperationLogEntry{
		AdvertiserID:  cred.AdvertiserID,
		PlatformID:    cred.PlatformID,
		OperationType: models.OpRefreshToken,
		Status:        status,
		ErrorMessage:  errMsg,
	})
}

func tokenOf(cred *models.PlatformCredential) *Token {
	return &Token{
		AccessToken:  cred.AccessToken,
		ProfileID:    cred.ProfileID,
		AdvertiserID: cred.AdvertiserID,
		PlatformID:   cred.PlatformID,
		ExpiresAt:    cred.TokenExpiresAt,
	}
}

// MaskToken shortens a token for log output.
func MaskToken(t string) string {
	if len(t) < 20 {
		return t
	}
	return "..." + t[len(t)-12:]
}

func asTokenRefreshError(credentialID string, err error) *TokenRefreshError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &TokenRefreshError{CredentialID: credentialID, Payload: string(retrieveErr.Body), Err: err}
	}
	return &TokenRefreshError{CredentialID: credentialID, Payload: err.Error(), Err: err}
}
