package users

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend/mocks"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
)

func TestDisplayName(t *testing.T) {
	u := &User{
		Username: "patron7",
		Personal: &Personal{FirstName: "Ada", MiddleName: "Byron", LastName: "Lovelace"},
	}
	assert.Equal(t, "Ada Byron Lovelace", u.DisplayName())

	u.Personal.MiddleName = ""
	assert.Equal(t, "Ada Lovelace", u.DisplayName())

	u.Personal = &Personal{}
	assert.Equal(t, "patron7", u.DisplayName())

	u.Personal = nil
	assert.Equal(t, "patron7", u.DisplayName())

	var nilUser *User
	assert.Equal(t, "", nilUser.DisplayName())
}

func TestHomeAddress(t *testing.T) {
	u := &User{Personal: &Personal{Addresses: []Address{
		{AddressLine1: "9 Old Road", City: "Springfield"},
		{
			AddressLine1:   "123 Fake Street",
			City:           "Anytown",
			Region:         "CA",
			PostalCode:     "12345-1234",
			CountryID:      "US",
			PrimaryAddress: true,
		},
	}}}

	assert.Equal(t, "123 Fake Street, Anytown, CA 12345-1234 US", u.HomeAddress())

	// Without a primary flag the first address wins.
	u.Personal.Addresses[1].PrimaryAddress = false
	assert.Equal(t, "9 Old Road, Springfield", u.HomeAddress())

	u.Personal.Addresses = nil
	assert.Equal(t, "", u.HomeAddress())
}

func TestIsActive(t *testing.T) {
	active := true
	assert.True(t, (&User{Active: &active}).IsActive())

	active = false
	assert.False(t, (&User{Active: &active}).IsActive())

	// A missing flag counts as inactive.
	assert.False(t, (&User{}).IsActive())

	var nilUser *User
	assert.False(t, nilUser.IsActive())
}

func TestFindByIdentifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	repo := NewRepository(provider, zerolog.Nop())
	sess := session.New("diku", '|', "UTC")

	provider.EXPECT().Retrieve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req backend.Request) (*backend.Resource, error) {
			assert.True(t, strings.HasPrefix(req.Path, "/users?limit=1&query="))
			assert.Contains(t, req.Path,
				"%28barcode%3D%3D12345+or+externalSystemId%3D%3D12345+or+username%3D%3D12345%29")
			return &backend.Resource{Body: json.RawMessage(
				`{"users":[{"id":"u-1","barcode":"12345","username":"patron7"}],"totalRecords":1}`,
			)}, nil
		})

	user, err := repo.FindByIdentifier(context.Background(), "12345", sess)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "patron7", user.Username)
}

func TestFindByIdentifier_NoMatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	repo := NewRepository(provider, zerolog.Nop())
	sess := session.New("diku", '|', "UTC")

	provider.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(
		&backend.Resource{Body: json.RawMessage(`{"users":[],"totalRecords":0}`)}, nil)

	user, err := repo.FindByIdentifier(context.Background(), "nobody", sess)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestFindByIdentifier_BackendRejection(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	repo := NewRepository(provider, zerolog.Nop())
	sess := session.New("diku", '|', "UTC")

	provider.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(
		&backend.Resource{ErrorMessages: []string{"query not understood"}}, nil)

	user, err := repo.FindByIdentifier(context.Background(), "12345", sess)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestFindByIdentifier_TransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	repo := NewRepository(provider, zerolog.Nop())
	sess := session.New("diku", '|', "UTC")

	provider.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(
		nil, errors.New("connection refused"))

	_, err := repo.FindByIdentifier(context.Background(), "12345", sess)
	require.Error(t, err)
}
