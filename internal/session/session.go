// Package session holds the per-connection state of one terminal exchange.
// A session is owned exclusively by its connection and is never shared, so no
// locking is needed; the verification cache is last-write-wins and dies with
// the connection.
package session

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Session is the mutable per-connection context: negotiated protocol
// parameters plus the password verification cache.
type Session struct {
	InstitutionID string
	// Location is the backend service point the terminal acts for.
	Location  string
	Delimiter byte
	// Timezone is the terminal's IANA timezone, used to interpret the wire
	// protocol's zone-less date slots.
	Timezone *time.Location
	Charset  string
	// Username is the backend operator account this connection logged in as.
	Username string

	ErrorDetectionEnabled        bool
	PasswordVerificationRequired bool

	verifications map[string]CachedVerification
	// AuthToken is managed by the backend login service.
	AuthToken string
}

// CachedVerification remembers the outcome of one password check so repeated
// commands in the same exchange skip the backend round trip. The password is
// held only as a bcrypt hash.
type CachedVerification struct {
	PasswordHash []byte
	Verified     bool
	UserJSON     []byte
	CachedAt     time.Time
}

// Option mutates a new session before first use.
type Option func(*Session)

func WithLocation(location string) Option {
	return func(s *Session) { s.Location = location }
}

func WithUsername(username string) Option {
	return func(s *Session) { s.Username = username }
}

func WithPasswordVerification(required bool) Option {
	return func(s *Session) { s.PasswordVerificationRequired = required }
}

// New creates a session for one connection. The timezone falls back to UTC
// when the configured name is unknown, which keeps a misconfigured terminal
// usable.
func New(institutionID string, delimiter byte, timezone string, opts ...Option) *Session {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	s := &Session{
		InstitutionID: institutionID,
		Delimiter:     delimiter,
		Timezone:      loc,
		Charset:       "UTF-8",
		verifications: make(map[string]CachedVerification),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheVerification records a verification outcome for a patron identifier.
func (s *Session) CacheVerification(patronIdentifier, password string, verified bool, userJSON []byte) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		// Cannot happen for MinCost, but an uncached entry is always safe.
		return
	}
	s.verifications[patronIdentifier] = CachedVerification{
		PasswordHash: hash,
		Verified:     verified,
		UserJSON:     userJSON,
		CachedAt:     time.Now(),
	}
}

// LookupVerification returns the cached outcome for the identifier when the
// supplied password matches the cached hash.
func (s *Session) LookupVerification(patronIdentifier, password string) (CachedVerification, bool) {
	entry, ok := s.verifications[patronIdentifier]
	if !ok {
		return CachedVerification{}, false
	}
	if bcrypt.CompareHashAndPassword(entry.PasswordHash, []byte(password)) != nil {
		return CachedVerification{}, false
	}
	return entry, true
}

// ClearVerifications drops the cache, used at end of patron session.
func (s *Session) ClearVerifications() {
	s.verifications = make(map[string]CachedVerification)
}
