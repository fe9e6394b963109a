package item

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend/mocks"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
)

func newItemRepo(t *testing.T) (*Repository, *mocks.MockProvider) {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	repo := NewRepository(provider, zerolog.Nop())
	repo.now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	return repo, provider
}

func TestItemInformation_CheckedOutWithHold(t *testing.T) {
	repo, provider := newItemRepo(t)
	sess := session.New("diku", '|', "UTC")

	provider.EXPECT().Retrieve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req backend.Request) (*backend.Resource, error) {
			switch {
			case strings.HasPrefix(req.Path, "/inventory/items?limit=1&query="):
				assert.Contains(t, req.Path, "barcode%3D%3Ditem42")
				return &backend.Resource{Body: json.RawMessage(`{"items":[{
					"id":"i-1","barcode":"item42","title":"Dune",
					"status":{"name":"Checked out"},
					"effectiveLocation":{"name":"Main Library"},
					"materialType":{"name":"book"}}]}`)}, nil
			case strings.HasPrefix(req.Path, "/circulation/requests?limit=1&query="):
				assert.Contains(t, req.Path, "itemId%3D%3Di-1")
				return &backend.Resource{Body: json.RawMessage(`{"requests":[{
					"requester":{"barcode":"67890","firstName":"Ada","lastName":"Lovelace"}}]}`)}, nil
			case strings.HasPrefix(req.Path, "/circulation/loans?limit=1&query="):
				assert.Contains(t, req.Path, "itemId%3D%3Di-1")
				return &backend.Resource{Body: json.RawMessage(
					`{"loans":[{"dueDate":"2024-07-01T23:59:59.000+0000"}]}`)}, nil
			default:
				t.Fatalf("unexpected path %s", req.Path)
				return nil, nil
			}
		}).Times(3)

	resp := repo.ItemInformation(context.Background(), sip.ItemInformation{
		InstitutionID:  "diku",
		ItemIdentifier: "item42",
	}, sess)

	assert.Equal(t, sip.CirculationStatusCharged, resp.CirculationStatus)
	assert.Equal(t, "Dune", resp.TitleIdentifier)
	assert.Equal(t, "Main Library", resp.PermanentLocation)
	assert.Equal(t, "book", resp.MediaType)
	assert.Equal(t, "67890", resp.HoldPatronID)
	assert.Equal(t, "Lovelace, Ada", resp.HoldPatronName)
	assert.Equal(t, time.Date(2024, 7, 1, 23, 59, 59, 0, time.UTC), resp.DueDate)
}

func TestItemInformation_AvailableSkipsLoanLookup(t *testing.T) {
	repo, provider := newItemRepo(t)
	sess := session.New("diku", '|', "UTC")

	provider.EXPECT().Retrieve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req backend.Request) (*backend.Resource, error) {
			switch {
			case strings.HasPrefix(req.Path, "/inventory/items"):
				return &backend.Resource{Body: json.RawMessage(`{"items":[{
					"id":"i-1","barcode":"item42","title":"Dune",
					"status":{"name":"Available"}}]}`)}, nil
			case strings.HasPrefix(req.Path, "/circulation/requests"):
				return &backend.Resource{Body: json.RawMessage(`{"requests":[]}`)}, nil
			default:
				t.Fatalf("unexpected path %s", req.Path)
				return nil, nil
			}
		}).Times(2)

	resp := repo.ItemInformation(context.Background(), sip.ItemInformation{
		ItemIdentifier: "item42",
	}, sess)

	assert.Equal(t, sip.CirculationStatusAvailable, resp.CirculationStatus)
	assert.Empty(t, resp.HoldPatronID)
	assert.True(t, resp.DueDate.IsZero())
}

func TestItemInformation_UnknownItem(t *testing.T) {
	repo, provider := newItemRepo(t)
	sess := session.New("diku", '|', "UTC")

	provider.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(
		&backend.Resource{Body: json.RawMessage(`{"items":[]}`)}, nil)

	resp := repo.ItemInformation(context.Background(), sip.ItemInformation{
		ItemIdentifier: "ghost",
	}, sess)

	assert.Equal(t, sip.CirculationStatusOther, resp.CirculationStatus)
	assert.Equal(t, sip.SecurityMarkerNone, resp.SecurityMarker)
	assert.Equal(t, "ghost", resp.ItemIdentifier)
	assert.Equal(t, "ghost", resp.TitleIdentifier)
}

func TestItemInformation_BackendDown(t *testing.T) {
	repo, provider := newItemRepo(t)
	sess := session.New("diku", '|', "UTC")

	provider.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(nil, backend.ErrTransport)

	resp := repo.ItemInformation(context.Background(), sip.ItemInformation{
		ItemIdentifier: "item42",
	}, sess)

	require.NotNil(t, resp)
	assert.Equal(t, sip.CirculationStatusOther, resp.CirculationStatus)
}
