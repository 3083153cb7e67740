package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tcg-market-pipeline/metrics"
)

// refreshMargin is how long before expiry a cached token stops being reused.
const refreshMargin = 60 * time.Second

// AuthError is returned when no access token can be obtained. It is fatal
// for an acquisition run and is never retried.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return "ebay auth: " + e.Body
	}
	return fmt.Sprintf("ebay auth: token request failed with status %d: %s", e.Status, e.Body)
}

// Permanent marks the error as non-retriable.
func (e *AuthError) Permanent() bool { return true }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenCache holds one application access token obtained with the
// client-credentials grant and refreshes it shortly before it expires.
type TokenCache struct {
	clientID     string
	clientSecret string
	tokenURL     string
	scope        string
	httpClient   *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache creates a cache for the given application credentials.
func NewTokenCache(clientID, clientSecret, tokenURL, scope string, httpClient *http.Client) *TokenCache {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenCache{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		scope:        scope,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// Token returns the cached token while it is valid for more than
// refreshMargin, otherwise exchanges the credentials for a new one.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt.Add(-refreshMargin)) {
		return c.token, nil
	}

	if c.clientID == "" || c.clientSecret == "" {
		return "", &AuthError{Body: "missing client credentials"}
	}

	issuedAt := c.now()
	tok, err := c.exchange(ctx)
	if err != nil {
		return "", err
	}

	c.token = tok.AccessToken
	c.expiresAt = issuedAt.Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *TokenCache) exchange(ctx context.Context) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", c.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Body: err.Error()}
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRequest("ebay_auth", 0)
		return nil, &AuthError{Body: err.Error()}
	}
	defer resp.Body.Close()
	metrics.ObserveRequest("ebay_auth", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Status: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, &AuthError{Status: resp.StatusCode, Body: "decode token response: " + err.Error()}
	}
	if tok.AccessToken == "" {
		return nil, &AuthError{Status: resp.StatusCode, Body: "empty access token"}
	}
	return &tok, nil
}
