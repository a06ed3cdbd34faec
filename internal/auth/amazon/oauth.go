// Package amazon implements the Login-with-Amazon OAuth flow and the Amazon
// Ads profile/credential bootstrap for advertisers.
package amazon

import (
	"github.com/adgate/adgate/internal/config"
	"golang.org/x/oauth2"
)

// Scope required for campaign management on the Ads API.
var Scopes = []string{"advertising::campaign_management"}

// OAuthConfig returns the OAuth2 config for the Login-with-Amazon endpoints.
// LWA expects client credentials in the form body, not basic auth.
func OAuthConfig(p config.Provider, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
