package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
)

func loginBackend(t *testing.T, logins *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/authn/login", r.URL.Path)
		require.Equal(t, "diku", r.Header.Get("x-okapi-tenant"))

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "sekrit" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}

		logins.Add(1)
		w.Header().Set("x-okapi-token", "opaque-token")
		w.WriteHeader(http.StatusCreated)
	}))
}

func TestLoginService_Token(t *testing.T) {
	var logins atomic.Int32
	srv := loginBackend(t, &logins)
	defer srv.Close()

	svc := NewLoginService(srv.URL, srv.Client(), "edge-user", "sekrit", nil, zerolog.Nop())
	sess := session.New("diku", '|', "UTC")

	token, err := svc.Token(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
	assert.Equal(t, int32(1), logins.Load())

	// The second call rides the cache.
	token, err = svc.Token(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
	assert.Equal(t, int32(1), logins.Load())
}

func TestLoginService_TokenRejected(t *testing.T) {
	var logins atomic.Int32
	srv := loginBackend(t, &logins)
	defer srv.Close()

	svc := NewLoginService(srv.URL, srv.Client(), "edge-user", "wrong", nil, zerolog.Nop())
	sess := session.New("diku", '|', "UTC")

	_, err := svc.Token(context.Background(), sess)
	require.Error(t, err)
}

func TestLoginService_TokenBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	svc := NewLoginService(srv.URL, nil, "edge-user", "sekrit", nil, zerolog.Nop())
	sess := session.New("diku", '|', "UTC")

	_, err := svc.Token(context.Background(), sess)
	require.ErrorIs(t, err, ErrTransport)
}

func TestLoginService_Verify(t *testing.T) {
	var logins atomic.Int32
	srv := loginBackend(t, &logins)
	defer srv.Close()

	svc := NewLoginService(srv.URL, srv.Client(), "edge-user", "sekrit", nil, zerolog.Nop())

	assert.True(t, svc.Verify(context.Background(), "diku", "sc01", "sekrit"))
	assert.False(t, svc.Verify(context.Background(), "diku", "sc01", "nope"))
}

func TestLoginService_MissingTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewLoginService(srv.URL, srv.Client(), "edge-user", "sekrit", nil, zerolog.Nop())
	sess := session.New("diku", '|', "UTC")

	_, err := svc.Token(context.Background(), sess)
	require.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	// Not a JWT: fall back to the default TTL.
	got := tokenExpiry("opaque-token")
	assert.WithinDuration(t, time.Now().Add(defaultTokenTTL), got, time.Minute)

	// Unsigned JWT with an exp claim; only the claim is read.
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := unsignedJWT(t, exp)
	assert.WithinDuration(t, exp, tokenExpiry(token), time.Second)
}

func unsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64JSON(t, map[string]any{"alg": "none", "typ": "JWT"})
	claims := base64JSON(t, map[string]any{"exp": exp.Unix()})
	return header + "." + claims + "."
}

func base64JSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(raw)
}
