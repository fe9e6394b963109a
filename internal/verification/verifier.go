// Package verification decides whether a patron supplied valid credentials.
// The backend performs the actual password match; the gateway only routes the
// check and caches the outcome on the session.
package verification

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/users"
)

// CredentialChecker validates a patron's password against the backend.
type CredentialChecker interface {
	Verify(ctx context.Context, tenant, username, password string) bool
}

// MessageInvalidPatron is shown on self-service terminals whenever a patron
// cannot be identified or fails the credential check. One deliberately vague
// line so the terminal never leaks why the account was refused.
const MessageInvalidPatron = "Your library card number cannot be located. " +
	"Please see a staff member for assistance."

// Verification is the tri-state outcome of a credential check. Verified is
// nil when the session does not require password verification or the
// terminal sent no password.
type Verification struct {
	User          *users.User
	Verified      *bool
	ErrorMessages []string
}

// Required reports whether a password check actually happened.
func (v Verification) Required() bool { return v.Verified != nil }

// OK reports whether the patron may proceed: either no check was required or
// the check passed.
func (v Verification) OK() bool { return v.Verified == nil || *v.Verified }

// UserLookup resolves patron identifiers; satisfied by users.Repository.
type UserLookup interface {
	FindByIdentifier(ctx context.Context, identifier string, sess *session.Session) (*users.User, error)
}

// Verifier runs the identifier lookup and, when the session demands it, the
// password check.
type Verifier struct {
	users   UserLookup
	checker CredentialChecker
	log     zerolog.Logger
}

func NewVerifier(users UserLookup, checker CredentialChecker, log zerolog.Logger) *Verifier {
	return &Verifier{
		users:   users,
		checker: checker,
		log:     log.With().Str("component", "verification").Logger(),
	}
}

// Verify always resolves the identifier; the password check is skipped when
// the session does not require verification or no password was supplied.
// Returns an error only on transport failure.
func (v *Verifier) Verify(ctx context.Context, identifier, password string,
	sess *session.Session) (Verification, error) {
	user, err := v.users.FindByIdentifier(ctx, identifier, sess)
	if err != nil {
		return Verification{}, err
	}

	if !sess.PasswordVerificationRequired || password == "" {
		return Verification{User: user}, nil
	}

	if user == nil || !user.IsActive() {
		return Verification{
			User:          user,
			Verified:      boolPtr(false),
			ErrorMessages: []string{MessageInvalidPatron},
		}, nil
	}

	if cached, ok := sess.LookupVerification(identifier, password); ok {
		cachedUser := user
		if len(cached.UserJSON) > 0 {
			var u users.User
			if err := json.Unmarshal(cached.UserJSON, &u); err == nil {
				cachedUser = &u
			}
		}
		return asVerification(cachedUser, cached.Verified), nil
	}

	verified := v.checker.Verify(ctx, sess.InstitutionID, user.Username, password)
	if userJSON, err := json.Marshal(user); err == nil {
		sess.CacheVerification(identifier, password, verified, userJSON)
	}
	if !verified {
		v.log.Info().Str("identifier", identifier).Msg("patron password rejected")
	}
	return asVerification(user, verified), nil
}

func asVerification(user *users.User, verified bool) Verification {
	v := Verification{User: user, Verified: boolPtr(verified)}
	if !verified {
		v.ErrorMessages = []string{MessageInvalidPatron}
	}
	return v
}

func boolPtr(b bool) *bool { return &b }
