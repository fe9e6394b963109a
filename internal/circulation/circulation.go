// Package circulation drives the backend circulation endpoints behind the
// checkin, checkout and renewal wire commands. Every command method degrades
// to a well-formed ok=false response on backend failure; terminals cannot
// display anything else.
package circulation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/verification"
)

// PatronVerifier runs the credential check gating charged commands.
type PatronVerifier interface {
	Verify(ctx context.Context, identifier, password string,
		sess *session.Session) (verification.Verification, error)
}

// Repository executes circulation commands and reads against the backend.
type Repository struct {
	provider backend.Provider
	verifier PatronVerifier
	now      func() time.Time
	log      zerolog.Logger
}

func NewRepository(provider backend.Provider, verifier PatronVerifier,
	log zerolog.Logger) *Repository {
	return &Repository{
		provider: provider,
		verifier: verifier,
		now:      time.Now,
		log:      log.With().Str("component", "circulation").Logger(),
	}
}

// checkinResult is the slice of the backend checkin payload the response
// needs.
type checkinResult struct {
	Item struct {
		Title  string `json:"title"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		Location struct {
			Name string `json:"name"`
		} `json:"location"`
		MaterialType struct {
			Name string `json:"name"`
		} `json:"materialType"`
		InTransitDestinationServicePoint struct {
			Name string `json:"name"`
		} `json:"inTransitDestinationServicePoint"`
	} `json:"item"`
}

// Checkin returns the item. The screen message carries the resulting item
// status and transit destination so staff can route the item.
func (r *Repository) Checkin(ctx context.Context, checkin sip.Checkin,
	sess *session.Session) *sip.CheckinResponse {
	body := map[string]any{
		"itemBarcode":    checkin.ItemIdentifier,
		"servicePointId": sess.Location,
		"checkInDate":    checkin.ReturnDate.UTC().Format(time.RFC3339),
	}

	resource, err := r.provider.Create(ctx, backend.Request{
		Path:    "/circulation/check-in-by-barcode",
		Headers: backend.BaseHeaders(),
		Body:    body,
		Session: sess,
	})

	response := &sip.CheckinResponse{
		TransactionDate: r.now(),
		InstitutionID:   checkin.InstitutionID,
		ItemIdentifier:  checkin.ItemIdentifier,
		// the scanned barcode stands in until the backend names the title
		TitleIdentifier: checkin.ItemIdentifier,
	}
	if err != nil || !resource.OK() {
		r.log.Warn().Err(err).Str("item", checkin.ItemIdentifier).Msg("checkin degraded")
		return response
	}

	var result checkinResult
	if err := resource.Decode(&result); err != nil {
		r.log.Warn().Err(err).Msg("checkin payload decode failed")
		return response
	}

	response.OK = true
	response.Resensitize = true
	if result.Item.Title != "" {
		response.TitleIdentifier = result.Item.Title
	}
	response.PermanentLocation = result.Item.Location.Name
	response.MediaType = result.Item.MaterialType.Name
	status := result.Item.Status.Name
	destination := result.Item.InTransitDestinationServicePoint.Name
	if status != "" || destination != "" {
		response.ScreenMessage = []string{status + " - " + destination}
	}
	return response
}

// checkoutResult is the slice of the backend checkout/renew payload the
// responses need.
type checkoutResult struct {
	DueDate string `json:"dueDate"`
	Item    struct {
		Title      string `json:"title"`
		InstanceID string `json:"instanceId"`
	} `json:"item"`
}

// Checkout lends the item to the patron after the credential gate.
func (r *Repository) Checkout(ctx context.Context, checkout sip.Checkout,
	sess *session.Session) *sip.CheckoutResponse {
	response := &sip.CheckoutResponse{
		TransactionDate:  r.now(),
		InstitutionID:    checkout.InstitutionID,
		PatronIdentifier: checkout.PatronIdentifier,
		ItemIdentifier:   checkout.ItemIdentifier,
		DueDate:          r.now(),
	}

	v, err := r.verifier.Verify(ctx, checkout.PatronIdentifier,
		checkout.PatronPassword, sess)
	if err != nil {
		r.log.Warn().Err(err).Msg("checkout verification degraded")
		return response
	}
	if !v.OK() {
		response.ScreenMessage = v.ErrorMessages
		return response
	}

	userBarcode := checkout.PatronIdentifier
	if v.User != nil && v.User.Barcode != "" {
		userBarcode = v.User.Barcode
	}
	body := map[string]any{
		"itemBarcode":    checkout.ItemIdentifier,
		"userBarcode":    userBarcode,
		"servicePointId": sess.Location,
	}

	resource, err := r.provider.Create(ctx, backend.Request{
		Path:    "/circulation/check-out-by-barcode",
		Headers: backend.BaseHeaders(),
		Body:    body,
		Session: sess,
	})
	if err != nil {
		r.log.Warn().Err(err).Str("item", checkout.ItemIdentifier).Msg("checkout degraded")
		return response
	}
	if !resource.OK() {
		response.ScreenMessage = resource.ErrorMessages
		return response
	}

	var result checkoutResult
	if err := resource.Decode(&result); err != nil {
		r.log.Warn().Err(err).Msg("checkout payload decode failed")
		return response
	}

	response.OK = true
	response.Desensitize = true
	response.TitleIdentifier = result.Item.Title
	if due, err := sip.ParseBackendTime(result.DueDate); err == nil {
		response.DueDate = due
	}
	return response
}

// Renew extends a single loan.
func (r *Repository) Renew(ctx context.Context, renew sip.Renew,
	sess *session.Session) *sip.RenewResponse {
	response := &sip.RenewResponse{
		TransactionDate:  r.now(),
		InstitutionID:    renew.InstitutionID,
		PatronIdentifier: renew.PatronIdentifier,
		ItemIdentifier:   renew.ItemIdentifier,
		DueDate:          r.now(),
	}

	v, err := r.verifier.Verify(ctx, renew.PatronIdentifier, renew.PatronPassword, sess)
	if err != nil {
		r.log.Warn().Err(err).Msg("renew verification degraded")
		return response
	}
	if !v.OK() {
		response.ScreenMessage = v.ErrorMessages
		return response
	}

	outcome := r.renewByBarcode(ctx, renew.PatronIdentifier, renew.ItemIdentifier, sess)
	if !outcome.ok {
		response.ScreenMessage = outcome.messages
		return response
	}

	response.OK = true
	response.RenewalOK = true
	response.TitleIdentifier = outcome.title
	if !outcome.dueDate.IsZero() {
		response.DueDate = outcome.dueDate
	}
	return response
}

// RenewAll renews every open loan of the patron and itemizes the outcome per
// item barcode.
func (r *Repository) RenewAll(ctx context.Context, renewAll sip.RenewAll,
	sess *session.Session) *sip.RenewAllResponse {
	response := &sip.RenewAllResponse{
		TransactionDate: r.now(),
		InstitutionID:   renewAll.InstitutionID,
		RenewedItems:    []string{},
		UnrenewedItems:  []string{},
	}

	v, err := r.verifier.Verify(ctx, renewAll.PatronIdentifier,
		renewAll.PatronPassword, sess)
	if err != nil {
		r.log.Warn().Err(err).Msg("renew all verification degraded")
		return response
	}
	if !v.OK() || v.User == nil {
		response.ScreenMessage = v.ErrorMessages
		return response
	}

	loans := r.LoansByUserID(ctx, v.User.ID, sess)
	if loans == nil {
		return response
	}

	userBarcode := renewAll.PatronIdentifier
	if v.User.Barcode != "" {
		userBarcode = v.User.Barcode
	}
	for _, loan := range loans.Loans {
		barcode := loan.Item.Barcode
		if barcode == "" {
			barcode = loan.ItemID
		}
		if r.renewByBarcode(ctx, userBarcode, barcode, sess).ok {
			response.RenewedItems = append(response.RenewedItems, barcode)
		} else {
			response.UnrenewedItems = append(response.UnrenewedItems, barcode)
		}
	}

	response.OK = true
	response.RenewedCount = len(response.RenewedItems)
	response.UnrenewedCount = len(response.UnrenewedItems)
	return response
}

type renewOutcome struct {
	ok       bool
	title    string
	dueDate  time.Time
	messages []string
}

func (r *Repository) renewByBarcode(ctx context.Context, userBarcode,
	itemBarcode string, sess *session.Session) renewOutcome {
	body := map[string]any{
		"servicePointId": sess.Location,
		"userBarcode":    userBarcode,
		"itemBarcode":    itemBarcode,
	}

	resource, err := r.provider.Create(ctx, backend.Request{
		Path:    "/circulation/renew-by-barcode",
		Headers: backend.BaseHeaders(),
		Body:    body,
		Session: sess,
	})
	if err != nil {
		r.log.Warn().Err(err).Str("item", itemBarcode).Msg("renew degraded")
		return renewOutcome{}
	}
	if !resource.OK() {
		return renewOutcome{messages: resource.ErrorMessages}
	}

	var result checkoutResult
	if err := resource.Decode(&result); err != nil {
		r.log.Warn().Err(err).Msg("renew payload decode failed")
		return renewOutcome{}
	}

	outcome := renewOutcome{ok: true, title: result.Item.Title}
	if due, err := sip.ParseBackendTime(result.DueDate); err == nil {
		outcome.dueDate = due
	}
	return outcome
}
