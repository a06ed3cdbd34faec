package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Logical operation names recorded in the audit trail.
const (
	OpListCampaigns     = "list_campaigns"
	OpGetCampaign       = "get_campaign"
	OpCreateCampaign    = "create_campaign"
	OpAdjustBudget      = "adjust_budget"
	OpGetCampaignReport = "get_campaign_report"
)

// AdsAPI exposes the campaign operations the chat backend drives. All calls
// go through the resilient client; results are the provider's raw responses.
type AdsAPI struct {
	client  *Client
	baseURL string
}

// NewAdsAPI creates the campaign operation surface.
func NewAdsAPI(client *Client, baseURL string) *AdsAPI {
	return &AdsAPI{client: client, baseURL: baseURL}
}

// ListCampaigns returns all sponsored-products campaigns for the credential's
// profile.
func (a *AdsAPI) ListCampaigns(ctx context.Context, credentialID string) (*Result, error) {
	return a.client.Do(ctx, credentialID, OpListCampaigns,
		http.MethodGet, a.baseURL+"/v2/sp/campaigns", nil, nil)
}

// GetCampaign fetches a single campaign.
func (a *AdsAPI) GetCampaign(ctx context.Context, credentialID, campaignID string) (*Result, error) {
	return a.client.Do(ctx, credentialID, OpGetCampaign,
		http.MethodGet, fmt.Sprintf("%s/v2/sp/campaigns/%s", a.baseURL, campaignID), nil, nil)
}

// CreateCampaign creates a campaign from the caller-supplied JSON payload.
func (a *AdsAPI) CreateCampaign(ctx context.Context, credentialID string, campaign json.RawMessage) (*Result, error) {
	return a.client.Do(ctx, credentialID, OpCreateCampaign,
		http.MethodPost, a.baseURL+"/v2/sp/campaigns", campaign, nil)
}

// AdjustBudget updates one campaign's daily budget.
func (a *AdsAPI) AdjustBudget(ctx context.Context, credentialID string, campaignID string, dailyBudget float64) (*Result, error) {
	body, err := json.Marshal([]map[string]interface{}{
		{"campaignId": campaignID, "dailyBudget": dailyBudget},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode budget update: %w", err)
	}
	return a.client.Do(ctx, credentialID, OpAdjustBudget,
		http.MethodPut, a.baseURL+"/v2/sp/campaigns", body, nil)
}

// GetCampaignReport requests a performance report for one campaign.
func (a *AdsAPI) GetCampaignReport(ctx context.Context, credentialID, campaignID, reportDate string) (*Result, error) {
	body, err := json.Marshal(map[string]interface{}{
		"campaignId": campaignID,
		"reportDate": reportDate,
		"metrics":    "impressions,clicks,cost,attributedSales14d",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode report request: %w", err)
	}
	return a.client.Do(ctx, credentialID, OpGetCampaignReport,
		http.MethodPost, a.baseURL+"/v2/sp/campaigns/report", body, nil)
}
