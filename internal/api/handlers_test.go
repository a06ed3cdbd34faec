package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adgate/adgate/internal/auth/token"
	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/db/models"
	"github.com/adgate/adgate/internal/oplog"
	"github.com/adgate/adgate/internal/provider"
	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

func newTestAPI(t *testing.T, tokenURL string) (*gorm.DB, http.Handler, *oplog.DBRecorder) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.PlatformCredential{}, &models.OperationLogEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	recorder := oplog.NewDBRecorder(db)
	mgr := token.NewManager(db, config.Provider{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		TokenURL:     tokenURL,
		PlatformID:   "amazon_ads",
		SkewWindow:   5 * time.Minute,
		HTTPTimeout:  5 * time.Second,
	}, recorder)

	r := chi.NewRouter()
	r.Get("/api/credentials", CredentialsHandler(db))
	r.Post("/api/credentials/{id}/refresh", RefreshCredentialHandler(mgr))
	r.Post("/api/credentials/{id}/deactivate", DeactivateCredentialHandler(mgr))
	r.Get("/api/operations", OperationsHandler(recorder))
	return db, r, recorder
}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Create(&models.PlatformCredential{
		ID:             "cred-1",
		AdvertiserID:   "adv-1",
		PlatformID:     "amazon_ads",
		ProfileID:      "prof-1",
		AccessToken:    "Atza|verysecretaccesstokenvalue",
		RefreshToken:   "rt1",
		TokenExpiresAt: time.Now().Add(-time.Minute),
		IsActive:       true,
	}).Error; err != nil {
		t.Fatalf("seed credential: %v", err)
	}
}

func TestCredentialsHandler_MasksTokens(t *testing.T) {
	db, handler, _ := newTestAPI(t, "http://127.0.0.1:0")
	seed(t, db)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/credentials", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "verysecretaccesstoken") {
		t.Fatal("expected access token masked in listing")
	}
	if !strings.Contains(body, "adv-1") {
		t.Fatalf("expected advertiser in listing, got %s", body)
	}
}

func TestRefreshCredentialHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at2","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	db, handler, recorder := newTestAPI(t, srv.URL)
	seed(t, db)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credentials/cred-1/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var stored models.PlatformCredential
	if err := db.First(&stored, "id = ?", "cred-1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.AccessToken != "at2" {
		t.Fatalf("expected refreshed token stored, got %q", stored.AccessToken)
	}

	// Audit trail is queryable over HTTP once writes drain.
	recorder.Flush()
	opsRec := httptest.NewRecorder()
	handler.ServeHTTP(opsRec, httptest.NewRequest(http.MethodGet, "/api/operations", nil))
	var entries []models.OperationLogEntry
	if err := json.Unmarshal(opsRec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode operations: %v", err)
	}
	if len(entries) != 1 || entries[0].OperationType != models.OpRefreshToken {
		t.Fatalf("expected one refresh_token entry, got %+v", entries)
	}
}

func TestRefreshCredentialHandler_UnknownID(t *testing.T) {
	_, handler, _ := newTestAPI(t, "http://127.0.0.1:0")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credentials/nope/refresh", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Category != CategoryNotFound {
		t.Fatalf("expected not_found category, got %s", resp.Category)
	}
}

type staticTokens struct {
	tok *token.Token
	err error
}

func (s *staticTokens) GetValidToken(ctx context.Context, credentialID string) (*token.Token, error) {
	return s.tok, s.err
}

func (s *staticTokens) ForceRefresh(ctx context.Context, credentialID string) (*token.Token, error) {
	return s.tok, s.err
}

func newCampaignRouter(t *testing.T, tokens provider.TokenProvider, upstream string) http.Handler {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.OperationLogEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	recorder := oplog.NewDBRecorder(db)
	client := provider.NewClient(tokens, "client-1", recorder, provider.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Jitter:      func() float64 { return 0 },
	}, 5*time.Second)
	ads := provider.NewAdsAPI(client, upstream)

	r := chi.NewRouter()
	r.Get("/api/campaigns", ListCampaignsHandler(ads))
	r.Get("/api/campaigns/{id}", GetCampaignHandler(ads))
	return r
}

func TestListCampaignsHandler_RelaysUpstreamBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/sp/campaigns" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"campaignId":42,"name":"brand-launch"}]`))
	}))
	defer srv.Close()

	handler := newCampaignRouter(t, &staticTokens{tok: &token.Token{
		AccessToken: "at1",
		ProfileID:   "prof-1",
	}}, srv.URL)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns?credential_id=cred-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "brand-launch") {
		t.Fatalf("expected upstream body relayed, got %s", rec.Body.String())
	}
}

func TestListCampaignsHandler_RequiresCredentialID(t *testing.T) {
	handler := newCampaignRouter(t, &staticTokens{tok: &token.Token{AccessToken: "at1"}}, "http://127.0.0.1:0")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetCampaignHandler_MapsTokenErrors(t *testing.T) {
	handler := newCampaignRouter(t, &staticTokens{
		err: &token.CredentialNotFoundError{CredentialID: "cred-1"},
	}, "http://127.0.0.1:0")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns/42?credential_id=cred-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Category != CategoryNotFound {
		t.Fatalf("expected not_found category, got %s", resp.Category)
	}
}

func TestDeactivateCredentialHandler(t *testing.T) {
	db, handler, _ := newTestAPI(t, "http://127.0.0.1:0")
	seed(t, db)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credentials/cred-1/deactivate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stored models.PlatformCredential
	if err := db.First(&stored, "id = ?", "cred-1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.IsActive {
		t.Fatal("expected credential deactivated")
	}
}
