package amazon

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/adgate/adgate/internal/config"
)

// HandleCallback processes the OAuth callback from the provider.
func HandleCallback(exchanger *Exchanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		advertiserID, ok := pendingStates.consume(state)
		if !ok {
			http.Error(w, "Invalid or expired state token", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		profileID, err := exchanger.Exchange(r.Context(), code, advertiserID, redirectURL(r))
		if err != nil {
			status := http.StatusInternalServerError
			var authErr *ExternalAuthError
			var confErr *config.ConfigurationError
			switch {
			case errors.As(err, &authErr):
				status = http.StatusBadGateway
			case errors.As(err, &confErr):
				status = http.StatusInternalServerError
			}
			http.Error(w, fmt.Sprintf("Token exchange failed: %v", err), status)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta http-equiv="refresh" content="3;url=/">
	<title>Account Connected</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; background: #1a1a2e; color: #eee; }
		.success { color: #4ade80; }
		code { background: #374151; padding: 2px 6px; border-radius: 4px; color: #fbbf24; }
		.redirect { color: #9ca3af; margin-top: 20px; }
	</style>
</head>
<body>
	<h1 class="success">✅ Account Connected!</h1>
	<p><strong>Advertiser:</strong> %s</p>
	<p><strong>Profile ID:</strong> <code>%s</code></p>
	<p class="redirect">Redirecting in 3 seconds...</p>
	<script>setTimeout(() => window.location.href = '/', 3000);</script>
</body>
</html>`, advertiserID, profileID)
	}
}
