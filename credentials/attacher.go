// Package credentials attaches the active credential to outgoing requests.
// The attacher resolves the authentication mode once per request and sets at
// most one Authorization header; acquisition failures downgrade the request
// to anonymous instead of failing it, letting the server reject it.
package credentials

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulnwatch/vulnwatch-client/authmode"
)

// DefaultLocalScheme is the bearer-like prefix for locally issued session
// tokens. Federated access tokens always use the standard "Bearer" scheme.
const DefaultLocalScheme = "JWT"

// ErrInteractionRequired is returned by TokenProvider.SilentToken when no
// token can be produced without user interaction.
var ErrInteractionRequired = errors.New("interaction required")

// TokenProvider yields federated access tokens. SilentToken must not prompt
// the user; BeginInteractive hands control to the provider's interactive
// sign-in flow and does not produce a token for the current request.
type TokenProvider interface {
	SilentToken(ctx context.Context) (string, error)
	BeginInteractive(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// Attacher decorates outgoing requests with the credential of the active
// authentication mode.
type Attacher struct {
	resolver    *authmode.Resolver
	provider    TokenProvider
	localScheme string
	logger      zerolog.Logger
}

type AttacherOption func(*Attacher)

// WithTokenProvider wires the federated token provider. Without one,
// federated mode degrades to anonymous requests.
func WithTokenProvider(provider TokenProvider) AttacherOption {
	return func(a *Attacher) {
		a.provider = provider
	}
}

// WithLocalScheme overrides the Authorization scheme prefix for local session
// tokens.
func WithLocalScheme(scheme string) AttacherOption {
	return func(a *Attacher) {
		a.localScheme = scheme
	}
}

func WithLogger(logger zerolog.Logger) AttacherOption {
	return func(a *Attacher) {
		a.logger = logger
	}
}

func NewAttacher(resolver *authmode.Resolver, options ...AttacherOption) (*Attacher, error) {
	if resolver == nil {
		return nil, errors.New("[NewAttacher] resolver is required")
	}

	attacher := &Attacher{
		resolver:    resolver,
		localScheme: DefaultLocalScheme,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(attacher)
	}
	return attacher, nil
}

// Attach sets the Authorization header for req according to the active mode.
// Local mode is synchronous. Federated mode tries a silent token first; if
// interaction is required the interactive flow is started exactly once and
// the current request proceeds anonymously, since the sign-in round trip
// completes outside this call. Any other acquisition failure is logged and
// the request likewise proceeds anonymously.
func (a *Attacher) Attach(ctx context.Context, req *http.Request) {
	state := a.resolver.Resolve()

	switch state.Mode {
	case authmode.ModeLocal:
		req.Header.Set("Authorization", a.localScheme+" "+state.Token)

	case authmode.ModeFederated:
		if a.provider == nil {
			a.logger.Warn().Msg("federated session present but no token provider configured")
			return
		}
		token, err := a.provider.SilentToken(ctx)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
			return
		}
		if errors.Is(err, ErrInteractionRequired) {
			a.logger.Info().Msg("silent token acquisition requires interaction, starting interactive sign-in")
			if interactErr := a.provider.BeginInteractive(ctx); interactErr != nil {
				a.logger.Error().Err(interactErr).Msg("interactive sign-in failed")
			}
			return
		}
		a.logger.Error().Err(err).Msg("silent token acquisition failed, proceeding without credential")

	case authmode.ModeAnonymous:
		// No credential; the server decides whether the call is allowed.
	}
}
