// Package users looks up patron user records in the backend.
package users

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
)

// User is the backend user record, reduced to what the gateway consumes.
type User struct {
	ID               string    `json:"id"`
	Barcode          string    `json:"barcode"`
	Username         string    `json:"username"`
	Active           *bool     `json:"active"`
	ExternalSystemID string    `json:"externalSystemId"`
	PatronGroup      string    `json:"patronGroup"`
	Personal         *Personal `json:"personal"`
}

// Personal carries the patron's name and contact details.
type Personal struct {
	FirstName  string    `json:"firstName"`
	MiddleName string    `json:"middleName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	// DateOfBirth stays in the backend's own timestamp format until a
	// response needs it rendered.
	DateOfBirth string    `json:"dateOfBirth"`
	Addresses   []Address `json:"addresses"`
}

// Address is one entry of the patron's address list.
type Address struct {
	AddressLine1   string `json:"addressLine1"`
	AddressLine2   string `json:"addressLine2"`
	City           string `json:"city"`
	Region         string `json:"region"`
	PostalCode     string `json:"postalCode"`
	CountryID      string `json:"countryId"`
	PrimaryAddress bool   `json:"primaryAddress"`
}

// IsActive treats a missing active flag as inactive.
func (u *User) IsActive() bool {
	return u != nil && u.Active != nil && *u.Active
}

// DisplayName renders "First Middle Last" skipping empty parts, falling back
// to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Personal != nil {
		parts := make([]string, 0, 3)
		for _, p := range []string{u.Personal.FirstName, u.Personal.MiddleName, u.Personal.LastName} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return u.Username
}

// HomeAddress renders the patron's primary address, else the first one, as a
// single line: "123 Fake Street, Anytown, CA 12345-1234 US". Empty when the
// patron has no address.
func (u *User) HomeAddress() string {
	if u == nil || u.Personal == nil || len(u.Personal.Addresses) == 0 {
		return ""
	}
	addr := u.Personal.Addresses[0]
	for _, a := range u.Personal.Addresses {
		if a.PrimaryAddress {
			addr = a
			break
		}
	}

	joined := make([]string, 0, 4)
	for _, p := range []string{addr.AddressLine1, addr.AddressLine2, addr.City, addr.Region} {
		if p != "" {
			joined = append(joined, p)
		}
	}
	line := strings.Join(joined, ", ")

	tail := make([]string, 0, 3)
	if line != "" {
		tail = append(tail, line)
	}
	for _, p := range []string{addr.PostalCode, addr.CountryID} {
		if p != "" {
			tail = append(tail, p)
		}
	}
	return strings.Join(tail, " ")
}

// Repository resolves patron identifiers to user records.
type Repository struct {
	provider backend.Provider
	log      zerolog.Logger
}

func NewRepository(provider backend.Provider, log zerolog.Logger) *Repository {
	return &Repository{
		provider: provider,
		log:      log.With().Str("component", "users").Logger(),
	}
}

// FindByIdentifier looks the patron up by barcode, external system id or
// username. Returns nil without error when no user matches or the backend
// rejected the query.
func (r *Repository) FindByIdentifier(ctx context.Context, identifier string,
	sess *session.Session) (*User, error) {
	query := fmt.Sprintf("(barcode==%s or externalSystemId==%s or username==%s)",
		identifier, identifier, identifier)
	req := backend.Request{
		Path:    "/users?limit=1&query=" + url.QueryEscape(query),
		Headers: backend.BaseHeaders(),
		Session: sess,
	}

	resource, err := r.provider.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resource.OK() {
		r.log.Debug().Str("identifier", identifier).Msg("user lookup rejected")
		return nil, nil
	}

	var result struct {
		Users []User `json:"users"`
	}
	if err := resource.Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Users) == 0 {
		return nil, nil
	}
	return &result.Users[0], nil
}
