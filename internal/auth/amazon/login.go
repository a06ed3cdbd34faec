package amazon

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/adgate/adgate/internal/config"
)

// stateStore maps CSRF state tokens to the advertiser that started the flow.
// Entries expire so abandoned flows do not accumulate.
type stateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
}

type stateEntry struct {
	advertiserID string
	createdAt    time.Time
}

const stateTTL = 15 * time.Minute

var pendingStates = &stateStore{states: make(map[string]stateEntry)}

func (s *stateStore) issue(advertiserID string) string {
	b := make([]byte, 16)
	rand.Read(b)
	state := hex.EncodeToString(b)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.states {
		if time.Since(e.createdAt) > stateTTL {
			delete(s.states, k)
		}
	}
	s.states[state] = stateEntry{advertiserID: advertiserID, createdAt: time.Now()}
	return state
}

func (s *stateStore) consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.states[state]
	if !ok || time.Since(e.createdAt) > stateTTL {
		delete(s.states, state)
		return "", false
	}
	delete(s.states, state)
	return e.advertiserID, true
}

// redirectURL reconstructs the callback URL from the incoming request.
func redirectURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/auth/amazon/callback", scheme, r.Host)
}

// HandleLogin starts the consent flow for one advertiser.
func HandleLogin(cfg config.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		advertiserID := r.URL.Query().Get("advertiser_id")
		if advertiserID == "" {
			http.Error(w, "advertiser_id is required", http.StatusBadRequest)
			return
		}

		state := pendingStates.issue(advertiserID)
		url := OAuthConfig(cfg, redirectURL(r)).AuthCodeURL(state)
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	}
}
