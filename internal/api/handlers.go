// Package api is the HTTP surface the chat/UI backend talks to.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/adgate/adgate/internal/auth/token"
	"github.com/adgate/adgate/internal/db/models"
	"github.com/adgate/adgate/internal/oplog"
	"github.com/adgate/adgate/internal/provider"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// credentialView is a PlatformCredential safe to return to the UI.
type credentialView struct {
	ID             string `json:"id"`
	AdvertiserID   string `json:"advertiser_id"`
	PlatformID     string `json:"platform_id"`
	ProfileID      string `json:"profile_id"`
	AccessToken    string `json:"access_token"` // masked
	TokenExpiresAt string `json:"token_expires_at"`
	IsActive       bool   `json:"is_active"`
}

// CredentialsHandler lists stored credentials with masked tokens.
func CredentialsHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds []models.PlatformCredential
		if err := db.Order("created_at").Find(&creds).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		views := make([]credentialView, 0, len(creds))
		for _, c := range creds {
			views = append(views, credentialView{
				ID:             c.ID,
				AdvertiserID:   c.AdvertiserID,
				PlatformID:     c.PlatformID,
				ProfileID:      c.ProfileID,
				AccessToken:    token.MaskToken(c.AccessToken),
				TokenExpiresAt: c.TokenExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
				IsActive:       c.IsActive,
			})
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// RefreshCredentialHandler triggers a manual token refresh.
func RefreshCredentialHandler(mgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := mgr.Refresh(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "Token refreshed",
		})
	}
}

// DeactivateCredentialHandler retires a credential without deleting it.
func DeactivateCredentialHandler(mgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := mgr.Deactivate(id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "Credential deactivated",
		})
	}
}

// OperationsHandler returns recent audit trail entries.
func OperationsHandler(rec *oplog.DBRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		sinceMinutes, _ := strconv.Atoi(r.URL.Query().Get("since_minutes"))

		entries, err := rec.Recent(limit, sinceMinutes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// ListCampaignsHandler proxies the campaign list for one credential.
func ListCampaignsHandler(ads *provider.AdsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credID, ok := requireCredentialID(w, r)
		if !ok {
			return
		}
		res, err := ads.ListCampaigns(r.Context(), credID)
		relay(w, res, err)
	}
}

// GetCampaignHandler proxies a single-campaign fetch.
func GetCampaignHandler(ads *provider.AdsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credID, ok := requireCredentialID(w, r)
		if !ok {
			return
		}
		res, err := ads.GetCampaign(r.Context(), credID, chi.URLParam(r, "id"))
		relay(w, res, err)
	}
}

// CreateCampaignHandler forwards a campaign creation payload.
func CreateCampaignHandler(ads *provider.AdsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credID, ok := requireCredentialID(w, r)
		if !ok {
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		res, err := ads.CreateCampaign(r.Context(), credID, body)
		relay(w, res, err)
	}
}

// AdjustBudgetHandler updates one campaign's daily budget.
func AdjustBudgetHandler(ads *provider.AdsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credID, ok := requireCredentialID(w, r)
		if !ok {
			return
		}
		var req struct {
			DailyBudget float64 `json:"daily_budget"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid budget payload", http.StatusBadRequest)
			return
		}
		res, err := ads.AdjustBudget(r.Context(), credID, chi.URLParam(r, "id"), req.DailyBudget)
		relay(w, res, err)
	}
}

// CampaignReportHandler requests a performance report.
func CampaignReportHandler(ads *provider.AdsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credID, ok := requireCredentialID(w, r)
		if !ok {
			return
		}
		reportDate := r.URL.Query().Get("report_date")
		res, err := ads.GetCampaignReport(r.Context(), credID, chi.URLParam(r, "id"), reportDate)
		relay(w, res, err)
	}
}

func requireCredentialID(w http.ResponseWriter, r *http.Request) (string, bool) {
	credID := r.URL.Query().Get("credential_id")
	if credID == "" {
		http.Error(w, "credential_id is required", http.StatusBadRequest)
		return "", false
	}
	return credID, true
}

// relay forwards a provider result or maps the typed error taxonomy.
func relay(w http.ResponseWriter, res *provider.Result, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	w.Write(res.Body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
