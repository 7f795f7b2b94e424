// Package oidcprovider implements the federated credentials.TokenProvider on
// top of an OpenID Connect provider. The provider-owned session record is
// persisted in the credential store under the issuer/client-id key; the rest
// of the access layer only ever checks its presence.
//
// The interactive flow is a non-resumable handoff: BeginInteractive builds
// the authorization URL and passes it to the configured interaction handler
// (open a browser, print the URL), and the original caller proceeds without a
// credential. CompleteInteractive finishes the round trip in whatever
// execution context receives the provider redirect.
package oidcprovider

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/vulnwatch/vulnwatch-client/credentials"
	"github.com/vulnwatch/vulnwatch-client/credstore"
)

const (
	// Tokens within this window of expiry are refreshed rather than used.
	expiryLeeway = 30 * time.Second

	stateKey    = "oidc.auth_state"
	verifierKey = "oidc.pkce_verifier"
)

var defaultScopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}

// InteractionHandler receives the provider URL that requires user
// interaction (sign-in or sign-out). It must not block on the round trip.
type InteractionHandler func(ctx context.Context, providerURL string) error

// sessionRecord is the persisted provider session. Only this package reads
// its fields.
type sessionRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

var _ credentials.TokenProvider = (*Provider)(nil)

type Provider struct {
	store     credstore.Store
	issuer    string
	clientID  string
	recordKey string

	oauthCfg      *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	endSessionURL string

	interact InteractionHandler
	logger   zerolog.Logger
	nowTime  func() time.Time
}

type ProviderOption func(*Provider)

// WithInteractionHandler sets the handler for sign-in/sign-out URLs. The
// default only logs the URL.
func WithInteractionHandler(handler InteractionHandler) ProviderOption {
	return func(p *Provider) {
		p.interact = handler
	}
}

func WithLogger(logger zerolog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowTime = nowFunc
	}
}

// WithScopes replaces the default openid/profile/email/offline_access scopes.
func WithScopes(scopes ...string) ProviderOption {
	return func(p *Provider) {
		p.oauthCfg.Scopes = scopes
	}
}

// New discovers the provider configuration from issuer and prepares the
// OAuth2 client. ctx is used for discovery only.
func New(ctx context.Context, store credstore.Store, issuer, clientID, redirectURL string, options ...ProviderOption) (*Provider, error) {
	if store == nil {
		return nil, errors.New("[oidcprovider.New] store is required")
	}
	if issuer == "" || clientID == "" {
		return nil, errors.New("[oidcprovider.New] issuer and clientID are required")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcprovider.New] provider discovery")
	}

	var discoveryClaims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := oidcProvider.Claims(&discoveryClaims); err != nil {
		return nil, errors.Wrap(err, "[oidcprovider.New] discovery claims")
	}

	provider := &Provider{
		store:     store,
		issuer:    issuer,
		clientID:  clientID,
		recordKey: credstore.FederatedUserKey(issuer, clientID),
		oauthCfg: &oauth2.Config{
			ClientID:    clientID,
			Endpoint:    oidcProvider.Endpoint(),
			RedirectURL: redirectURL,
			Scopes:      defaultScopes,
		},
		verifier:      oidcProvider.Verifier(&oidc.Config{ClientID: clientID}),
		endSessionURL: discoveryClaims.EndSessionEndpoint,
		logger:        log.Logger,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(provider)
	}
	if provider.interact == nil {
		provider.interact = provider.logInteraction
	}
	return provider, nil
}

// SilentToken returns a usable access token without user interaction,
// refreshing through the provider when the cached one is expired or about to
// expire. credentials.ErrInteractionRequired is returned when no session
// record exists or the refresh grant is no longer accepted.
func (p *Provider) SilentToken(ctx context.Context) (string, error) {
	record, ok := p.loadRecord()
	if !ok {
		return "", credentials.ErrInteractionRequired
	}

	if record.AccessToken != "" && record.Expiry.After(p.nowTime().Add(expiryLeeway)) {
		return record.AccessToken, nil
	}

	if record.RefreshToken == "" {
		return "", credentials.ErrInteractionRequired
	}

	source := p.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: record.RefreshToken})
	refreshed, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			// The refresh token was revoked or has expired; only a fresh
			// interactive sign-in can recover.
			return "", credentials.ErrInteractionRequired
		}
		return "", errors.Wrap(err, "[Provider.SilentToken] refresh")
	}

	record.AccessToken = refreshed.AccessToken
	record.Expiry = refreshed.Expiry
	if refreshed.RefreshToken != "" {
		record.RefreshToken = refreshed.RefreshToken
	}
	if idToken, ok := refreshed.Extra("id_token").(string); ok && idToken != "" {
		record.IDToken = idToken
	}
	if err := p.saveRecord(record); err != nil {
		return "", errors.Wrap(err, "[Provider.SilentToken] persist refreshed record")
	}
	return record.AccessToken, nil
}

// BeginInteractive starts the authorization-code sign-in with PKCE and hands
// the authorization URL to the interaction handler. No token is produced
// here; CompleteInteractive finishes the flow after the redirect.
func (p *Provider) BeginInteractive(ctx context.Context) error {
	state := uuid.New().String()
	pkceVerifier := oauth2.GenerateVerifier()

	if err := p.store.Set(stateKey, state); err != nil {
		return errors.Wrap(err, "[Provider.BeginInteractive] persist state")
	}
	if err := p.store.Set(verifierKey, pkceVerifier); err != nil {
		return errors.Wrap(err, "[Provider.BeginInteractive] persist verifier")
	}

	authURL := p.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(pkceVerifier))
	if err := p.interact(ctx, authURL); err != nil {
		return errors.Wrap(err, "[Provider.BeginInteractive] interaction handler")
	}
	return nil
}

// CompleteInteractive exchanges the redirect parameters for tokens and
// persists the session record. The state must match the one issued by
// BeginInteractive; the ID token, when returned, is verified against the
// provider keys.
func (p *Provider) CompleteInteractive(ctx context.Context, state, code string) error {
	storedState, ok := p.store.Get(stateKey)
	if !ok || storedState != state {
		return errors.New("[Provider.CompleteInteractive] state mismatch")
	}
	pkceVerifier, ok := p.store.Get(verifierKey)
	if !ok {
		return errors.New("[Provider.CompleteInteractive] missing PKCE verifier")
	}
	_ = p.store.Remove(stateKey)
	_ = p.store.Remove(verifierKey)

	token, err := p.oauthCfg.Exchange(ctx, code, oauth2.VerifierOption(pkceVerifier))
	if err != nil {
		return errors.Wrap(err, "[Provider.CompleteInteractive] code exchange")
	}

	record := sessionRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		if _, err := p.verifier.Verify(ctx, rawIDToken); err != nil {
			return errors.Wrap(err, "[Provider.CompleteInteractive] ID token verification")
		}
		record.IDToken = rawIDToken
	}

	if err := p.saveRecord(record); err != nil {
		return errors.Wrap(err, "[Provider.CompleteInteractive] persist record")
	}
	return nil
}

// SignOut removes the session record and, when the provider advertises an
// end-session endpoint, hands the sign-out URL to the interaction handler.
func (p *Provider) SignOut(ctx context.Context) error {
	record, hadRecord := p.loadRecord()
	if err := p.store.Remove(p.recordKey); err != nil {
		return errors.Wrap(err, "[Provider.SignOut] remove record")
	}
	if p.endSessionURL == "" {
		return nil
	}

	signOutURL, err := url.Parse(p.endSessionURL)
	if err != nil {
		return errors.Wrap(err, "[Provider.SignOut] end session URL")
	}
	query := signOutURL.Query()
	query.Set("client_id", p.clientID)
	if hadRecord && record.IDToken != "" {
		query.Set("id_token_hint", record.IDToken)
	}
	signOutURL.RawQuery = query.Encode()

	if err := p.interact(ctx, signOutURL.String()); err != nil {
		return errors.Wrap(err, "[Provider.SignOut] interaction handler")
	}
	return nil
}

func (p *Provider) loadRecord() (sessionRecord, bool) {
	raw, ok := p.store.Get(p.recordKey)
	if !ok || raw == "" {
		return sessionRecord{}, false
	}
	var record sessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		p.logger.Warn().Err(err).Msg("corrupt federated session record, treating as absent")
		return sessionRecord{}, false
	}
	return record, true
}

func (p *Provider) saveRecord(record sessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return p.store.Set(p.recordKey, string(data))
}

func (p *Provider) logInteraction(_ context.Context, providerURL string) error {
	p.logger.Info().Str("url", providerURL).Msg("user interaction required, visit the provider URL")
	return nil
}
