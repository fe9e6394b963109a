package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/metrics"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
)

// TokenSource supplies the auth token for a session's tenant.
type TokenSource interface {
	Token(ctx context.Context, sess *session.Session) (string, error)
}

// HTTPProvider implements Provider over net/http.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	metrics *metrics.Metrics
	tracer  trace.Tracer
	log     zerolog.Logger
}

func NewHTTPProvider(baseURL string, client *http.Client, tokens TokenSource,
	m *metrics.Metrics, log zerolog.Logger) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  client,
		tokens:  tokens,
		metrics: m,
		tracer:  otel.Tracer("backend"),
		log:     log.With().Str("component", "backend").Logger(),
	}
}

func (p *HTTPProvider) Retrieve(ctx context.Context, req Request) (*Resource, error) {
	return p.do(ctx, http.MethodGet, req)
}

func (p *HTTPProvider) Create(ctx context.Context, req Request) (*Resource, error) {
	return p.do(ctx, http.MethodPost, req)
}

func (p *HTTPProvider) do(ctx context.Context, method string, req Request) (*Resource, error) {
	ctx, span := p.tracer.Start(ctx, "backend."+method,
		trace.WithAttributes(attribute.String("backend.path", req.Path)))
	defer span.End()

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil {
		httpReq.Header.Set("content-type", "application/json")
	}
	httpReq.Header.Set("x-request-id", uuid.NewString())
	if req.Session != nil {
		httpReq.Header.Set("x-okapi-tenant", req.Session.InstitutionID)
		if p.tokens != nil {
			token, err := p.tokens.Token(ctx, req.Session)
			if err != nil {
				span.SetStatus(codes.Error, "token acquisition failed")
				return nil, fmt.Errorf("%w: acquire token: %v", ErrTransport, err)
			}
			httpReq.Header.Set("x-okapi-token", token)
		}
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if p.metrics != nil {
		p.metrics.ObserveBackendRequest(method, req.Path, time.Since(start), err == nil)
	}
	if err != nil {
		span.SetStatus(codes.Error, "transport failure")
		p.log.Error().Err(err).Str("path", req.Path).Msg("backend call failed")
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, "read failure")
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.log.Warn().Int("status", resp.StatusCode).Str("path", req.Path).
			Msg("backend reported an error")
		return &Resource{ErrorMessages: extractErrorMessages(payload, resp.StatusCode)}, nil
	}

	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return &Resource{Body: payload}, nil
}

// extractErrorMessages pulls human readable messages from a backend error
// payload. The backend is inconsistent: structured errors, bare text, or
// nothing at all.
func extractErrorMessages(payload []byte, status int) []string {
	var structured struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(payload, &structured); err == nil && len(structured.Errors) > 0 {
		messages := make([]string, 0, len(structured.Errors))
		for _, e := range structured.Errors {
			if e.Message != "" {
				messages = append(messages, e.Message)
			}
		}
		if len(messages) > 0 {
			return messages
		}
	}
	if text := bytes.TrimSpace(payload); len(text) > 0 && len(text) < 512 && text[0] != '{' {
		return []string{string(text)}
	}
	return []string{fmt.Sprintf("backend request failed with status %d", status)}
}
