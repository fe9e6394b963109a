package tcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend/mocks"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/circulation"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/events"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
)

func testDispatcher(handlers Handlers, inbox chan events.Event) *dispatcher {
	return &dispatcher{
		handlers: handlers,
		events:   inbox,
		now:      func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) },
		log:      zerolog.Nop(),
	}
}

func TestDispatch_SCStatus(t *testing.T) {
	d := testDispatcher(Handlers{}, nil)
	sess := session.New("diku", '|', "UTC", session.WithLocation("circ-desk"))

	resp, ok := d.dispatch(context.Background(), sip.CommandSCStatus, &sip.SCStatus{
		ProtocolVersion: "2.00",
	}, sess)

	require.True(t, ok)
	status, isStatus := resp.(*sip.ACSStatusResponse)
	require.True(t, isStatus)
	assert.True(t, status.OnlineStatus)
	assert.True(t, status.CheckinOK)
	assert.True(t, status.CheckoutOK)
	assert.Equal(t, "2.00", status.ProtocolVersion)
	assert.Equal(t, "diku", status.InstitutionID)
	assert.Equal(t, "circ-desk", status.TerminalLocation)
	assert.Len(t, status.SupportedMessages, 16)
}

func TestDispatch_CheckinEmitsEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, backend.ErrTransport)

	inbox := make(chan events.Event, 1)
	d := testDispatcher(Handlers{
		Circulation: circulation.NewRepository(provider, nil, zerolog.Nop()),
	}, inbox)
	sess := session.New("diku", '|', "UTC")

	resp, ok := d.dispatch(context.Background(), sip.CommandCheckin, &sip.Checkin{
		ItemIdentifier: "item42",
	}, sess)

	require.NotNil(t, resp)
	assert.False(t, ok)

	select {
	case event := <-inbox:
		assert.Equal(t, events.KindCheckin, event.Kind)
		assert.Equal(t, "diku", event.InstitutionID)
		assert.Equal(t, "item42", event.ItemIdentifier)
		assert.False(t, event.OK)
		assert.False(t, event.OccurredAt.IsZero())
	default:
		t.Fatal("expected a checkin event")
	}
}

func TestDispatch_FullInboxDropsEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, backend.ErrTransport)

	// No reader and no capacity: emit must drop, never block.
	inbox := make(chan events.Event)
	d := testDispatcher(Handlers{
		Circulation: circulation.NewRepository(provider, nil, zerolog.Nop()),
	}, inbox)
	sess := session.New("diku", '|', "UTC")

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.dispatch(context.Background(), sip.CommandCheckin, &sip.Checkin{
			ItemIdentifier: "item42",
		}, sess)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on a full event inbox")
	}
}

func TestDispatch_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-okapi-token", "tok-1")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	login := backend.NewLoginService(srv.URL, srv.Client(), "edge-user", "sekrit",
		nil, zerolog.Nop())
	d := testDispatcher(Handlers{Login: login}, nil)
	sess := session.New("diku", '|', "UTC")

	resp, ok := d.dispatch(context.Background(), sip.CommandLogin, &sip.Login{
		LoginUserID:   "sc01",
		LoginPassword: "sclogin",
		LocationCode:  "circ-desk",
	}, sess)

	require.True(t, ok)
	loginResp := resp.(*sip.LoginResponse)
	assert.True(t, loginResp.OK)
	assert.Equal(t, "sc01", sess.Username)
	assert.Equal(t, "circ-desk", sess.Location)
}

func TestDispatch_LoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	login := backend.NewLoginService(srv.URL, srv.Client(), "edge-user", "sekrit",
		nil, zerolog.Nop())
	d := testDispatcher(Handlers{Login: login}, nil)
	sess := session.New("diku", '|', "UTC")

	resp, ok := d.dispatch(context.Background(), sip.CommandLogin, &sip.Login{
		LoginUserID:   "sc01",
		LoginPassword: "wrong",
	}, sess)

	require.True(t, ok)
	assert.False(t, resp.(*sip.LoginResponse).OK)
	assert.Empty(t, sess.Username)
}
