package tcp

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/circulation"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/events"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/feefines"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/item"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/patron"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
)

// protocolVersion is the wire protocol level this gateway advertises.
const protocolVersion = "2.00"

// supportedMessages is the sixteen character feature block of the status
// response: one Y per implemented command, in wire order.
const supportedMessages = "YYYNYYYYYYYNNNYY"

// Handlers bundles the repositories the dispatcher routes commands to.
type Handlers struct {
	Circulation *circulation.Repository
	Patron      *patron.Repository
	FeeFines    *feefines.Repository
	Item        *item.Repository
	Login       *backend.LoginService
}

// dispatcher turns one decoded command into one response object and reports
// whether the command succeeded for metrics and event purposes.
type dispatcher struct {
	handlers Handlers
	events   chan<- events.Event
	now      func() time.Time
	log      zerolog.Logger
}

// dispatch routes a parsed command. The returned response is never nil for a
// known command.
func (d *dispatcher) dispatch(ctx context.Context, cmd sip.Command, request any,
	sess *session.Session) (any, bool) {
	switch req := request.(type) {
	case *sip.Checkin:
		resp := d.handlers.Circulation.Checkin(ctx, *req, sess)
		d.emit(events.Event{
			Kind:           events.KindCheckin,
			InstitutionID:  sess.InstitutionID,
			ItemIdentifier: req.ItemIdentifier,
			OK:             resp.OK,
		})
		return resp, resp.OK
	case *sip.Checkout:
		resp := d.handlers.Circulation.Checkout(ctx, *req, sess)
		d.emit(events.Event{
			Kind:             events.KindCheckout,
			InstitutionID:    sess.InstitutionID,
			PatronIdentifier: req.PatronIdentifier,
			ItemIdentifier:   req.ItemIdentifier,
			OK:               resp.OK,
		})
		return resp, resp.OK
	case *sip.Renew:
		resp := d.handlers.Circulation.Renew(ctx, *req, sess)
		d.emit(events.Event{
			Kind:             events.KindRenew,
			InstitutionID:    sess.InstitutionID,
			PatronIdentifier: req.PatronIdentifier,
			ItemIdentifier:   req.ItemIdentifier,
			OK:               resp.OK,
		})
		return resp, resp.OK
	case *sip.RenewAll:
		resp := d.handlers.Circulation.RenewAll(ctx, *req, sess)
		return resp, resp.OK
	case *sip.PatronStatusRequest:
		resp := d.handlers.Patron.PatronStatus(ctx, *req, sess)
		return resp, resp.ValidPatron
	case *sip.PatronInformation:
		resp := d.handlers.Patron.PatronInformation(ctx, *req, sess)
		return resp, resp.ValidPatron
	case *sip.EndPatronSession:
		resp := d.handlers.Patron.EndPatronSession(ctx, *req, sess)
		return resp, resp.EndSession
	case *sip.FeePaid:
		resp := d.handlers.FeeFines.FeePaid(ctx, *req, sess)
		d.emit(events.Event{
			Kind:             events.KindFeePaid,
			InstitutionID:    sess.InstitutionID,
			PatronIdentifier: req.PatronIdentifier,
			OK:               resp.PaymentAccepted,
		})
		return resp, resp.PaymentAccepted
	case *sip.ItemInformation:
		resp := d.handlers.Item.ItemInformation(ctx, *req, sess)
		return resp, true
	case *sip.SCStatus:
		return d.scStatus(sess), true
	case *sip.Login:
		return d.login(ctx, *req, sess), true
	default:
		d.log.Error().Str("command", string(cmd)).Msg("command without a route")
		return nil, false
	}
}

func (d *dispatcher) scStatus(sess *session.Session) *sip.ACSStatusResponse {
	return &sip.ACSStatusResponse{
		OnlineStatus:      true,
		CheckinOK:         true,
		CheckoutOK:        true,
		StatusUpdateOK:    false,
		OfflineOK:         false,
		TimeoutPeriod:     3,
		RetriesAllowed:    2,
		DateTimeSync:      d.now(),
		ProtocolVersion:   protocolVersion,
		InstitutionID:     sess.InstitutionID,
		SupportedMessages: supportedMessages,
		TerminalLocation:  sess.Location,
	}
}

// login checks terminal credentials against the backend and, on success,
// binds the operator and service point to the session.
func (d *dispatcher) login(ctx context.Context, req sip.Login,
	sess *session.Session) *sip.LoginResponse {
	ok := d.handlers.Login.Verify(ctx, sess.InstitutionID, req.LoginUserID, req.LoginPassword)
	if ok {
		sess.Username = req.LoginUserID
		if req.LocationCode != "" {
			sess.Location = req.LocationCode
		}
	}
	return &sip.LoginResponse{OK: ok}
}

// emit drops the event unless a worker is draining the inbox; the wire path
// never waits on the broker.
func (d *dispatcher) emit(event events.Event) {
	if d.events == nil {
		return
	}
	event.OccurredAt = d.now()
	select {
	case d.events <- event:
	default:
		d.log.Debug().Str("kind", string(event.Kind)).Msg("event inbox full, dropped")
	}
}
