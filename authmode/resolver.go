// Package authmode decides which authentication mode is active for the
// client. The decision is made from token presence in the credential store
// alone; cached profile data never counts as proof of authentication. At most
// one mode is active at a time: a local session token always wins over a
// federated identity record.
package authmode

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/vulnwatch/vulnwatch-client/credstore"
)

// Mode is the closed set of authentication modes.
type Mode int

const (
	ModeAnonymous Mode = iota
	ModeLocal
	ModeFederated
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeFederated:
		return "federated"
	default:
		return "anonymous"
	}
}

// State is the resolved authentication state for one outgoing request.
// Token is set for ModeLocal; Issuer/ClientID identify the provider for
// ModeFederated. The federated session record itself stays opaque.
type State struct {
	Mode     Mode
	Token    string
	Issuer   string
	ClientID string
}

// Resolver derives the active State from store contents. Issuer and clientID
// may be empty for deployments without a federated provider.
type Resolver struct {
	store    credstore.Store
	issuer   string
	clientID string
	nowTime  func() time.Time
}

type ResolverOption func(*Resolver)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.nowTime = nowFunc
	}
}

func NewResolver(store credstore.Store, issuer, clientID string, options ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("[NewResolver] store is required")
	}

	resolver := &Resolver{
		store:    store,
		issuer:   issuer,
		clientID: clientID,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(resolver)
	}
	return resolver, nil
}

// Resolve returns the active state, checking local session presence before
// the federated identity record.
func (r *Resolver) Resolve() State {
	if token, ok := r.localToken(); ok {
		return State{Mode: ModeLocal, Token: token}
	}
	if r.IsFederatedActive() {
		return State{Mode: ModeFederated, Issuer: r.issuer, ClientID: r.clientID}
	}
	return State{Mode: ModeAnonymous}
}

// IsLocalSessionActive reports whether a usable local session token is
// present.
func (r *Resolver) IsLocalSessionActive() bool {
	_, ok := r.localToken()
	return ok
}

// IsFederatedActive reports whether the provider-owned session record keyed
// by issuer and client ID is present.
func (r *Resolver) IsFederatedActive() bool {
	if r.issuer == "" || r.clientID == "" {
		return false
	}
	record, ok := r.store.Get(credstore.FederatedUserKey(r.issuer, r.clientID))
	return ok && record != ""
}

// localToken returns the stored session token unless it is a JWT whose expiry
// has demonstrably passed. Opaque (non-JWT) tokens are taken at face value;
// the signature is never checked here, only the server can do that.
func (r *Resolver) localToken() (string, bool) {
	token, ok := r.store.Get(credstore.KeySessionToken)
	if !ok || token == "" {
		return "", false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return token, true
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return token, true
	}
	if expiry.Before(r.nowTime()) {
		return "", false
	}
	return token, true
}
