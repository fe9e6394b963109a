// Package tcp accepts terminal connections and runs the wire protocol
// exchange: carriage-return framed messages in, encoded responses out. Each
// connection owns exactly one session context for its lifetime.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/events"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/config"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/metrics"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/sip"
)

// messageTerminator ends every wire frame in both directions.
const messageTerminator = '\r'

// requestResend asks the terminal to repeat a frame the gateway could not
// decode.
const requestResend = "96"

// Server owns the listener and the per-connection exchange loops.
type Server struct {
	cfg      config.Config
	handlers Handlers
	metrics  *metrics.Metrics
	events   chan<- events.Event
	log      zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(cfg config.Config, handlers Handlers, m *metrics.Metrics,
	eventInbox chan<- events.Event, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		handlers: handlers,
		metrics:  m,
		events:   eventInbox,
		log:      log.With().Str("component", "tcp").Logger(),
	}
}

// ListenAndServe accepts connections until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.log.Info().Str("addr", s.cfg.Listen).Msg("accepting terminal connections")

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
	wg.Wait()
	return nil
}

// Shutdown closes the listener; in-flight exchanges finish on their own.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
		defer s.metrics.ActiveConnections.Dec()
	}

	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	log.Info().Msg("terminal connected")

	tenant := s.cfg.Tenant
	delimiter := byte('|')
	if tenant.FieldDelimiter != "" {
		delimiter = tenant.FieldDelimiter[0]
	}
	sess := session.New(tenant.InstitutionID, delimiter, tenant.Timezone,
		session.WithLocation(tenant.Location),
		session.WithPasswordVerification(tenant.PasswordVerification))
	sess.ErrorDetectionEnabled = tenant.ErrorDetection
	sess.Charset = tenant.Charset
	defer sess.ClearVerifications()

	parser := sip.NewParser(sess.Delimiter, sess.Timezone, log)
	encoder := sip.NewEncoder(sess.Delimiter, sess.Timezone, sess.ErrorDetectionEnabled)
	d := &dispatcher{
		handlers: s.handlers,
		events:   s.events,
		now:      time.Now,
		log:      log,
	}

	reader := bufio.NewReader(conn)
	for {
		frame, err := reader.ReadBytes(messageTerminator)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("read failed")
			}
			log.Info().Msg("terminal disconnected")
			return
		}
		frame = bytes.TrimRight(frame, "\r\n")
		if len(frame) == 0 {
			continue
		}

		response := s.handleFrame(ctx, d, parser, sess, log, frame)
		if response == nil {
			continue
		}
		if err := s.write(conn, encoder, response, sip.FrameSequence(frame)); err != nil {
			log.Warn().Err(err).Msg("write failed")
			return
		}
	}
}

// handleFrame decodes and dispatches one frame. A nil return means nothing
// is written back; framing failures return a resend request instead.
func (s *Server) handleFrame(ctx context.Context, d *dispatcher, parser *sip.Parser,
	sess *session.Session, log zerolog.Logger, frame []byte) any {
	body, err := sip.VerifyFrame(frame)
	if err != nil {
		log.Warn().Err(err).Msg("frame rejected")
		s.countFramingError()
		return resendMarker{}
	}

	cmd, request, err := parser.Parse(body)
	if err != nil {
		log.Warn().Err(err).Str("command", string(cmd)).Msg("message rejected")
		s.countFramingError()
		return resendMarker{}
	}

	response, ok := d.dispatch(ctx, cmd, request, sess)
	if s.metrics != nil {
		s.metrics.IncCommand(string(cmd), ok)
	}
	return response
}

// resendMarker stands in for a response when the inbound frame could not be
// decoded.
type resendMarker struct{}

func (s *Server) write(conn net.Conn, encoder *sip.Encoder, response any, seq int) error {
	var out []byte
	if _, isResend := response.(resendMarker); isResend {
		out = []byte(requestResend)
		if s.cfg.Tenant.ErrorDetection {
			out = sip.AppendErrorDetection(out, -1)
		}
	} else {
		encoded, err := encoder.Encode(response, seq)
		if err != nil {
			return err
		}
		out = encoded
	}
	out = append(out, messageTerminator)
	_, err := conn.Write(out)
	return err
}

func (s *Server) countFramingError() {
	if s.metrics != nil {
		s.metrics.FramingErrorsTotal.Inc()
	}
}
