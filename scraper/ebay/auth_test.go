package ebay

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, calls *int32, status int, expiresIn int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}

		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:secret"))
		assert.Equal(t, want, r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "https://api.ebay.com/oauth/api_scope", r.PostForm.Get("scope"))

		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":%d,"token_type":"Application Access Token"}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenCacheReusesValidToken(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, http.StatusOK, 7200)

	cache := NewTokenCache("id", "secret", srv.URL, "https://api.ebay.com/oauth/api_scope", srv.Client())
	for i := 0; i < 3; i++ {
		tok, err := cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenCacheRefreshesInsideSafetyMargin(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, http.StatusOK, 120)

	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache("id", "secret", srv.URL, "https://api.ebay.com/oauth/api_scope", srv.Client())
	cache.now = func() time.Time { return now }

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	now = now.Add(59 * time.Second)
	tok, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok, "61s of validity left")

	now = now.Add(2 * time.Second)
	tok, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok, "59s of validity left is inside the margin")
}

func TestTokenCacheNonSuccessStatus(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, http.StatusUnauthorized, 0)

	cache := NewTokenCache("id", "wrong", srv.URL, "scope", srv.Client())
	_, err := cache.Token(context.Background())

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Contains(t, authErr.Body, "invalid_client")
	assert.True(t, authErr.Permanent())
}

func TestTokenCacheMissingCredentials(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, http.StatusOK, 7200)

	cache := NewTokenCache("", "", srv.URL, "scope", srv.Client())
	_, err := cache.Token(context.Background())

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, 0, authErr.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no exchange without credentials")
}
