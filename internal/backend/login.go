package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend/tokencache"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
)

const loginPath = "/authn/login"

// defaultTokenTTL applies when the backend hands out a token without an exp
// claim.
const defaultTokenTTL = 10 * time.Minute

// LoginService logs in against the backend and hands out tenant tokens.
// It implements TokenSource for the HTTP provider.
type LoginService struct {
	baseURL  string
	client   *http.Client
	username string
	password string
	cache    tokencache.Cache
	log      zerolog.Logger

	// mu serializes logins so concurrent sessions of the same tenant do
	// not stampede the backend.
	mu sync.Mutex
}

func NewLoginService(baseURL string, client *http.Client, username, password string,
	cache tokencache.Cache, log zerolog.Logger) *LoginService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cache == nil {
		cache = tokencache.NewMemoryCache()
	}
	return &LoginService{
		baseURL:  baseURL,
		client:   client,
		username: username,
		password: password,
		cache:    cache,
		log:      log.With().Str("component", "login").Logger(),
	}
}

// Token returns a valid auth token for the session's tenant, logging in with
// the configured service credentials when the cache has nothing usable.
func (s *LoginService) Token(ctx context.Context, sess *session.Session) (string, error) {
	tenant := sess.InstitutionID

	if token, ok, err := s.cache.Get(ctx, tenant); err == nil && ok {
		return token, nil
	} else if err != nil {
		s.log.Warn().Err(err).Msg("token cache read failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock: another caller may have just logged in.
	if token, ok, err := s.cache.Get(ctx, tenant); err == nil && ok {
		return token, nil
	}

	token, err := s.login(ctx, tenant, s.username, s.password)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, tenant, token, tokenExpiry(token)); err != nil {
		s.log.Warn().Err(err).Msg("token cache write failed")
	}
	return token, nil
}

// Verify checks terminal credentials by attempting a backend login with them.
// Used by the wire login command; the resulting token is discarded.
func (s *LoginService) Verify(ctx context.Context, tenant, username, password string) bool {
	_, err := s.login(ctx, tenant, username, password)
	if err != nil {
		s.log.Info().Str("username", username).Msg("terminal login rejected")
		return false
	}
	return true
}

func (s *LoginService) login(ctx context.Context, tenant, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+loginPath,
		bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-okapi-tenant", tenant)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	token := resp.Header.Get("x-okapi-token")
	if token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// gateway only needs to know when to refresh, trust stays with the backend.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(defaultTokenTTL)
}
