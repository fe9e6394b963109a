// Package backend abstracts the library-services REST API behind a resource
// provider capability. Repositories only see paths, headers, bodies and
// results; transport, auth and tracing live here.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/session"
)

//go:generate mockgen -destination=mocks/provider.go -package=mocks . Provider

// ErrTransport marks a backend call that failed below the HTTP application
// layer (connect, timeout). Backend-reported business errors never produce an
// error; they surface as Resource.ErrorMessages.
var ErrTransport = errors.New("backend transport failure")

// Request describes one backend resource access.
type Request struct {
	Path    string
	Headers map[string]string
	// Body is JSON-marshaled when non-nil.
	Body    any
	Session *session.Session
}

// Resource is the outcome of a backend call: either a JSON payload or a
// non-empty list of human-oriented error messages.
type Resource struct {
	Body          json.RawMessage
	ErrorMessages []string
}

// OK reports whether the backend produced a payload.
func (r *Resource) OK() bool {
	return r != nil && len(r.ErrorMessages) == 0
}

// Decode unmarshals the payload into v.
func (r *Resource) Decode(v any) error {
	if r == nil || r.Body == nil {
		return errors.New("resource has no payload")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode backend payload: %w", err)
	}
	return nil
}

// Provider retrieves or creates backend resources. Implementations return an
// error only for transport-level failure.
type Provider interface {
	Retrieve(ctx context.Context, req Request) (*Resource, error)
	Create(ctx context.Context, req Request) (*Resource, error)
}

// BaseHeaders returns the headers every repository call carries.
func BaseHeaders() map[string]string {
	return map[string]string{"accept": "application/json"}
}
