package circulation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
)

// RequestsPage is one page of circulation requests (holds and recalls).
type RequestsPage struct {
	Requests     []Request `json:"requests"`
	TotalRecords int       `json:"totalRecords"`
}

// Request is a backend hold or recall request.
type Request struct {
	ID          string `json:"id"`
	ItemID      string `json:"itemId"`
	RequesterID string `json:"requesterId"`
	RequestType string `json:"requestType"`
	RequestDate string `json:"requestDate"`
	Status      string `json:"status"`
	Item        struct {
		Barcode string `json:"barcode"`
	} `json:"item"`
	Instance struct {
		Title string `json:"title"`
	} `json:"instance"`
}

// LoansPage is one page of open loans.
type LoansPage struct {
	Loans        []Loan `json:"loans"`
	TotalRecords int    `json:"totalRecords"`
}

// Loan is a backend loan record.
type Loan struct {
	ID      string `json:"id"`
	ItemID  string `json:"itemId"`
	UserID  string `json:"userId"`
	DueDate string `json:"dueDate"`
	Item    struct {
		Barcode    string `json:"barcode"`
		Title      string `json:"title"`
		InstanceID string `json:"instanceId"`
		Status     struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"item"`
}

// openRequestStatuses is the status disjunction used when only open requests
// are of interest.
func openRequestStatuses() []sip.RequestStatus {
	return []sip.RequestStatus{
		sip.RequestStatusOpenAwaitingDelivery,
		sip.RequestStatusOpenAwaitingPickup,
		sip.RequestStatusOpenInTransit,
		sip.RequestStatusOpenNotYetFilled,
	}
}

// RequestsByUserID returns the patron's requests filtered by status.
// Degrades to nil on any backend failure.
func (r *Repository) RequestsByUserID(ctx context.Context, userID string,
	statuses []sip.RequestStatus, startItem, endItem *int,
	sess *session.Session) *RequestsPage {
	return r.requests(ctx, "requesterId", userID, statuses, startItem, endItem, sess)
}

// RequestsByItemID returns open requests placed against an item.
func (r *Repository) RequestsByItemID(ctx context.Context, itemID string,
	startItem, endItem *int, sess *session.Session) *RequestsPage {
	return r.requests(ctx, "itemId", itemID, openRequestStatuses(), startItem, endItem, sess)
}

// RecallRequestsByItemID returns open recall requests placed against an item.
func (r *Repository) RecallRequestsByItemID(ctx context.Context, itemID string,
	sess *session.Session) *RequestsPage {
	page := r.requests(ctx, "itemId", itemID, openRequestStatuses(), nil, nil, sess)
	if page == nil {
		return nil
	}
	recalls := make([]Request, 0, len(page.Requests))
	for _, req := range page.Requests {
		if req.RequestType == "Recall" {
			recalls = append(recalls, req)
		}
	}
	return &RequestsPage{Requests: recalls, TotalRecords: len(recalls)}
}

func (r *Repository) requests(ctx context.Context, idField, idValue string,
	statuses []sip.RequestStatus, startItem, endItem *int,
	sess *session.Session) *RequestsPage {
	var query strings.Builder
	query.WriteString("(")
	query.WriteString(idField)
	query.WriteString("==")
	query.WriteString(idValue)
	query.WriteString(" and (")
	for i, status := range statuses {
		if i > 0 {
			query.WriteString(" or ")
		}
		fmt.Fprintf(&query, "status==%q", status.Value())
	}
	query.WriteString("))")

	path := appendLimits("/circulation/requests?limit=10&query="+
		url.QueryEscape(query.String()), startItem, endItem)

	page := &RequestsPage{}
	if !r.retrieve(ctx, path, sess, page) {
		return nil
	}
	return page
}

// LoansByUserID returns the patron's open loans.
func (r *Repository) LoansByUserID(ctx context.Context, userID string,
	sess *session.Session) *LoansPage {
	query := url.QueryEscape("(userId==" + userID + " and status.name=Open)")
	page := &LoansPage{}
	if !r.retrieve(ctx, "/circulation/loans?limit=200&query="+query, sess, page) {
		return nil
	}
	return page
}

// OverdueLoansByUserID returns the patron's open loans due before dueDate.
func (r *Repository) OverdueLoansByUserID(ctx context.Context, userID string,
	dueDate time.Time, startItem, endItem *int, sess *session.Session) *LoansPage {
	query := fmt.Sprintf("(userId==%s and status.name=Open and dueDate<%s)",
		userID, dueDate.UTC().Format(time.RFC3339))
	path := appendLimits("/circulation/loans?limit=200&query="+
		url.QueryEscape(query), startItem, endItem)

	page := &LoansPage{}
	if !r.retrieve(ctx, path, sess, page) {
		return nil
	}
	return page
}

func (r *Repository) retrieve(ctx context.Context, path string,
	sess *session.Session, out any) bool {
	resource, err := r.provider.Retrieve(ctx, backend.Request{
		Path:    path,
		Headers: backend.BaseHeaders(),
		Session: sess,
	})
	if err != nil || !resource.OK() {
		r.log.Warn().Err(err).Str("path", path).Msg("circulation read degraded")
		return false
	}
	if err := resource.Decode(out); err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("circulation read decode failed")
		return false
	}
	return true
}

// appendLimits translates the protocol's 1-based inclusive item bounds to the
// backend's 0-based offset and limit query parameters.
func appendLimits(path string, startItem, endItem *int) string {
	offset := 0
	if startItem != nil {
		offset = *startItem - 1
		path += fmt.Sprintf("&offset=%d", offset)
	}
	if endItem != nil {
		path += fmt.Sprintf("&limit=%d", *endItem-offset)
	}
	return path
}
