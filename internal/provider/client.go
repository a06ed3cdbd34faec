// Package provider is the resilient invocation layer for the Amazon Ads API.
// Every outbound campaign call goes through Client.Do, which owns token
// injection, the single forced refresh on 401, and transient-failure retry.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/adgate/adgate/internal/auth/token"
	"github.com/adgate/adgate/internal/db/models"
	"github.com/adgate/adgate/internal/logging"
	"github.com/adgate/adgate/internal/oplog"
)

// TokenProvider is the slice of the token manager the invoker needs.
type TokenProvider interface {
	GetValidToken(ctx context.Context, credentialID string) (*token.Token, error)
	ForceRefresh(ctx context.Context, credentialID string) (*token.Token, error)
}

// Result is the raw provider response handed back to callers.
type Result struct {
	Status int
	Body   []byte
	Header http.Header
}

// Client issues authenticated requests against the Ads API.
type Client struct {
	httpClient *http.Client
	tokens     TokenProvider
	clientID   string
	recorder   oplog.Recorder
	policy     Policy
}

// NewClient creates a resilient API client.
func NewClient(tokens TokenProvider, clientID string, recorder oplog.Recorder, policy Policy, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		clientID:   clientID,
		recorder:   recorder,
		policy:     policy,
	}
}

// Do performs one logical API operation. On 401 it forces exactly one token
// refresh and retries once; network errors, 5xx, and 429 are retried with
// exponential backoff up to the policy's attempt budget. Exactly one audit
// entry is written per invocation.
func (c *Client) Do(ctx context.Context, credentialID, operation, method, url string, body []byte, extra http.Header) (*Result, error) {
	tok, err := c.tokens.GetValidToken(ctx, credentialID)
	if err != nil {
		c.record(nil, operation, models.StatusError, err.Error())
		return nil, err
	}

	var lastErr error
	lastStatus := 0
	retryAfter := time.Duration(0)
	refreshed := false

	attempt := 0
	for attempt < c.policy.MaxAttempts {
		resp, err := c.send(ctx, method, url, tok, body, extra)
		if err != nil {
			if ctx.Err() != nil {
				c.record(tok, operation, models.StatusError, ctx.Err().Error())
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			lastStatus = 0
			attempt++
			if attempt < c.policy.MaxAttempts {
				if serr := c.backoff(ctx, attempt-1, 0); serr != nil {
					c.record(tok, operation, models.StatusError, serr.Error())
					return nil, serr
				}
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response: %w", readErr)
			lastStatus = 0
			attempt++
			if attempt < c.policy.MaxAttempts {
				if serr := c.backoff(ctx, attempt-1, 0); serr != nil {
					c.record(tok, operation, models.StatusError, serr.Error())
					return nil, serr
				}
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				authErr := &AuthorizationError{CredentialID: credentialID, Operation: operation}
				c.record(tok, operation, models.StatusError, authErr.Error())
				return nil, authErr
			}
			// Token invalidated out-of-band; refresh once and retry
			// immediately without touching the attempt budget.
			log.Printf("⚠️ %s got 401, forcing token refresh for credential %s", operation, credentialID)
			refreshed = true
			fresh, err := c.tokens.ForceRefresh(ctx, credentialID)
			if err != nil {
				c.record(tok, operation, models.StatusError, err.Error())
				return nil, err
			}
			tok = fresh
			continue

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &ProviderError{Status: resp.StatusCode, Body: string(respBody)}
			lastStatus = resp.StatusCode
			retryAfter = ParseRetryAfter(resp.Header)
			attempt++
			if attempt < c.policy.MaxAttempts {
				log.Printf("⚠️ %s attempt %d returned %d, retrying...", operation, attempt, resp.StatusCode)
				if serr := c.backoff(ctx, attempt-1, retryAfter); serr != nil {
					c.record(tok, operation, models.StatusError, serr.Error())
					return nil, serr
				}
			}
			continue

		case resp.StatusCode >= 400:
			provErr := &ProviderError{Status: resp.StatusCode, Body: string(respBody)}
			c.record(tok, operation, models.StatusError, provErr.Error())
			return nil, provErr

		default:
			c.record(tok, operation, models.StatusSuccess, "")
			return &Result{Status: resp.StatusCode, Body: respBody, Header: resp.Header}, nil
		}
	}

	var terminal error
	if lastStatus == http.StatusTooManyRequests {
		terminal = &RateLimitExceededError{Attempts: c.policy.MaxAttempts, Err: lastErr}
	} else {
		terminal = &RetriesExhaustedError{Attempts: c.policy.MaxAttempts, Err: lastErr}
	}
	c.record(tok, operation, models.StatusError, terminal.Error())
	return nil, terminal
}

// backoff sleeps the computed delay for retry number attempt, stretched to a
// provider-suggested Retry-After when that is longer.
func (c *Client) backoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	delay := c.policy.Delay(attempt)
	if retryAfter > delay {
		delay = retryAfter
	}
	return sleep(ctx, delay)
}

func (c *Client) send(ctx context.Context, method, url string, tok *token.Token, body []byte, extra http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Amazon-Advertising-API-ClientId", c.clientID)
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	if tok.ProfileID != "" {
		req.Header.Set("Amazon-Advertising-API-Scope", tok.ProfileID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range extra {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	return c.httpClient.Do(req)
}

func (c *Client) record(tok *token.Token, operation, status, errMsg string) {
	entry := models.OperationLogEntry{
		OperationType: operation,
		Status:        status,
		ErrorMessage:  errMsg,
	}
	if tok != nil {
		entry.AdvertiserID = tok.AdvertiserID
		entry.PlatformID = tok.PlatformID
	}
	c.recorder.Record(entry)
}
