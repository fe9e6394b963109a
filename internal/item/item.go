// Package item answers the item information wire command. One command fans
// into a chain of backend lookups: the inventory item, the next hold awaiting
// pickup, and, for checked out items, the open loan that carries the due
// date.
package item

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
)

// inventoryItem is the slice of the backend item record the response needs.
type inventoryItem struct {
	ID      string `json:"id"`
	Barcode string `json:"barcode"`
	Title   string `json:"title"`
	Status  struct {
		Name string `json:"name"`
	} `json:"status"`
	EffectiveLocation struct {
		Name string `json:"name"`
	} `json:"effectiveLocation"`
	MaterialType struct {
		Name string `json:"name"`
	} `json:"materialType"`
}

type itemsPage struct {
	Items []inventoryItem `json:"items"`
}

type holdRequest struct {
	Requester struct {
		Barcode   string `json:"barcode"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"requester"`
}

type holdsPage struct {
	Requests []holdRequest `json:"requests"`
}

type loansPage struct {
	Loans []struct {
		DueDate string `json:"dueDate"`
	} `json:"loans"`
}

// Repository resolves item information lookups.
type Repository struct {
	provider backend.Provider
	now      func() time.Time
	log      zerolog.Logger
}

func NewRepository(provider backend.Provider, log zerolog.Logger) *Repository {
	return &Repository{
		provider: provider,
		now:      time.Now,
		log:      log.With().Str("component", "item").Logger(),
	}
}

// ItemInformation looks the item up by barcode and folds in the next hold
// and, if checked out, the active loan. Unknown items degrade to a
// CirculationStatusOther response carrying the scanned barcode.
func (r *Repository) ItemInformation(ctx context.Context, info sip.ItemInformation,
	sess *session.Session) *sip.ItemInformationResponse {
	response := &sip.ItemInformationResponse{
		CirculationStatus: sip.CirculationStatusOther,
		SecurityMarker:    sip.SecurityMarkerNone,
		TransactionDate:   r.now(),
		ItemIdentifier:    info.ItemIdentifier,
		TitleIdentifier:   info.ItemIdentifier,
	}

	item, ok := r.findItem(ctx, info.ItemIdentifier, sess)
	if !ok {
		return response
	}

	response.CirculationStatus = sip.LookupCirculationStatus(item.Status.Name)
	if item.Title != "" {
		response.TitleIdentifier = item.Title
	}
	response.PermanentLocation = item.EffectiveLocation.Name
	response.MediaType = item.MaterialType.Name

	if hold := r.nextHold(ctx, item.ID, sess); hold != nil {
		response.HoldPatronID = hold.Requester.Barcode
		response.HoldPatronName = hold.Requester.LastName + ", " + hold.Requester.FirstName
	}

	if item.Status.Name == sip.ItemStatusCheckedOut {
		if due, ok := r.loanDueDate(ctx, item.ID, sess); ok {
			response.DueDate = due
		}
	}
	return response
}

func (r *Repository) findItem(ctx context.Context, barcode string,
	sess *session.Session) (inventoryItem, bool) {
	path := "/inventory/items?limit=1&query=" + url.QueryEscape("barcode=="+barcode)
	page := itemsPage{}
	if !r.retrieve(ctx, path, sess, &page) || len(page.Items) == 0 {
		return inventoryItem{}, false
	}
	return page.Items[0], true
}

func (r *Repository) nextHold(ctx context.Context, itemID string,
	sess *session.Session) *holdRequest {
	path := "/circulation/requests?limit=1&query=" + url.QueryEscape(
		`status=="Open - Awaiting pickup" and itemId==`+itemID)
	page := holdsPage{}
	if !r.retrieve(ctx, path, sess, &page) || len(page.Requests) == 0 {
		return nil
	}
	return &page.Requests[0]
}

func (r *Repository) loanDueDate(ctx context.Context, itemID string,
	sess *session.Session) (time.Time, bool) {
	path := "/circulation/loans?limit=1&query=" + url.QueryEscape(
		"(itemId=="+itemID+" and status.name==Open)")
	page := loansPage{}
	if !r.retrieve(ctx, path, sess, &page) || len(page.Loans) == 0 {
		return time.Time{}, false
	}
	due, err := sip.ParseBackendTime(page.Loans[0].DueDate)
	if err != nil {
		r.log.Warn().Str("dueDate", page.Loans[0].DueDate).Msg("unparseable loan due date")
		return time.Time{}, false
	}
	return due, true
}

func (r *Repository) retrieve(ctx context.Context, path string,
	sess *session.Session, out any) bool {
	resource, err := r.provider.Retrieve(ctx, backend.Request{
		Path:    path,
		Headers: backend.BaseHeaders(),
		Session: sess,
	})
	if err != nil || !resource.OK() {
		r.log.Warn().Err(err).Str("path", path).Msg("item read degraded")
		return false
	}
	if err := resource.Decode(out); err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("item read decode failed")
		return false
	}
	return true
}
