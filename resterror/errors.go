// Package resterror defines the normalized error shape produced by the API
// access layer. Every transport or backend failure is reduced to a single
// Error value carrying a human-readable message and a coarse failure kind, so
// callers (notification surfaces, CLIs) never have to inspect raw responses.
package resterror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a failure by what the caller can do about it.
type Kind string

const (
	// KindClientRejected covers 4xx responses: the request was understood and
	// refused.
	KindClientRejected Kind = "client-rejected"
	// KindServerError covers 5xx responses and malformed response bodies.
	KindServerError Kind = "server-error"
	// KindNetworkFailure covers transport-level failures where no response was
	// received at all.
	KindNetworkFailure Kind = "network-failure"
	// KindAuthExpired covers 401/403 on an authenticated call outside of a
	// login attempt; it drives the session-expiry transition.
	KindAuthExpired Kind = "authorization-expired"
)

// Error is the uniform failure value of the access layer. Message is always
// human-readable; Status is zero when no HTTP response was received.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error with an explicit kind.
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// FromStatus classifies a non-2xx HTTP status. The body, when present, is
// searched for the conventional "detail" / "message" fields used by the
// backend before falling back to the standard status text. 401/403 come back
// as KindAuthExpired; a caller that sent the request without a credential
// downgrades that to KindClientRejected, since only an authenticated call can
// expire.
func FromStatus(status int, body []byte) *Error {
	return &Error{
		Kind:    classify(status),
		Status:  status,
		Message: messageFromBody(status, body),
	}
}

// FromTransport wraps a failure of the transport itself (DNS, refused
// connection, cancelled context) where no HTTP response exists.
func FromTransport(err error) *Error {
	return &Error{
		Kind:    KindNetworkFailure,
		Message: err.Error(),
	}
}

// AsError unwraps err into a normalized *Error if one is in its chain.
func AsError(err error) (*Error, bool) {
	var restErr *Error
	if errors.As(err, &restErr) {
		return restErr, true
	}
	return nil, false
}

// KindOf reports the kind of err, or an empty Kind when err carries no
// normalized error.
func KindOf(err error) Kind {
	if restErr, ok := AsError(err); ok {
		return restErr.Kind
	}
	return ""
}

func classify(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthExpired
	case status >= 500:
		return KindServerError
	default:
		return KindClientRejected
	}
}

func messageFromBody(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" {
		var payload struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			if payload.Detail != "" {
				return payload.Detail
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
		if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
			return trimmed
		}
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}
