package tcp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/config"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
)

func startTestServer(t *testing.T, cfg config.Config) (*Server, string) {
	t.Helper()

	srv := NewServer(cfg, Handlers{}, nil, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = srv.ListenAndServe(ctx) }()

	var addr string
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		if srv.listener == nil {
			return false
		}
		addr = srv.listener.Addr().String()
		return true
	}, time.Second, 5*time.Millisecond)

	return srv, addr
}

func testConfig() config.Config {
	return config.Config{
		Listen: "127.0.0.1:0",
		Tenant: config.Tenant{
			InstitutionID:  "diku",
			Location:       "circ-desk",
			Timezone:       "UTC",
			FieldDelimiter: "|",
			ErrorDetection: true,
		},
	}
}

func exchange(t *testing.T, conn net.Conn, frame string) string {
	t.Helper()
	_, err := conn.Write([]byte(frame + "\r"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	reply, err := bufio.NewReader(conn).ReadString('\r')
	require.NoError(t, err)
	return strings.TrimRight(reply, "\r")
}

func TestServer_SCStatusExchange(t *testing.T) {
	_, addr := startTestServer(t, testConfig())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	frame := string(sip.AppendErrorDetection([]byte("9900302.00"), 0))
	reply := exchange(t, conn, frame)

	assert.True(t, strings.HasPrefix(reply, "98YYY"))
	assert.Contains(t, reply, "AOdiku|")
	assert.Contains(t, reply, "BXYYYNYYYYYYYNNNYY|")
	// The response echoes the request's sequence number.
	body, err := sip.VerifyFrame([]byte(reply))
	require.NoError(t, err)
	assert.Equal(t, 0, sip.FrameSequence([]byte(reply)))
	assert.NotEmpty(t, body)
}

func TestServer_BadChecksumRequestsResend(t *testing.T) {
	_, addr := startTestServer(t, testConfig())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	frame := sip.AppendErrorDetection([]byte("9900302.00"), 0)
	frame[2] = 'X'
	reply := exchange(t, conn, string(frame))

	assert.Equal(t, "96AZF6", reply)
}

func TestServer_UnknownCommandRequestsResend(t *testing.T) {
	_, addr := startTestServer(t, testConfig())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	reply := exchange(t, conn, "77nonsense")
	assert.Equal(t, "96AZF6", reply)
}

func TestServer_Shutdown(t *testing.T) {
	srv, addr := startTestServer(t, testConfig())

	srv.Shutdown()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return false
		}
		return true
	}, time.Second, 10*time.Millisecond)
}
