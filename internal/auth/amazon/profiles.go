package amazon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Profile is one Ads sub-account as reported by the profiles endpoint.
type Profile struct {
	ProfileID   int64  `json:"profileId"`
	CountryCode string `json:"countryCode"`
	Type        string `json:"accountInfo.type,omitempty"`
}

// FetchProfiles lists the advertiser's profiles using a fresh access token.
func FetchProfiles(ctx context.Context, client *http.Client, profilesURL, clientID, accessToken string) ([]Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profilesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profiles request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Amazon-Advertising-API-ClientId", clientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profiles request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profiles endpoint returned %d: %s", resp.StatusCode, body)
	}

	var profiles []Profile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profiles response: %w", err)
	}
	return profiles, nil
}

// FirstProfileID picks the provider's first profile, the deterministic
// tie-break used at exchange time. Empty when no profiles exist.
func FirstProfileID(profiles []Profile) string {
	if len(profiles) == 0 {
		return ""
	}
	return strconv.FormatInt(profiles[0].ProfileID, 10)
}
