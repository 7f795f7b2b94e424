package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/vulnwatch/vulnwatch-client/authmode"
	"github.com/vulnwatch/vulnwatch-client/credentials"
	"github.com/vulnwatch/vulnwatch-client/credstore"
	"github.com/vulnwatch/vulnwatch-client/credstore/memstore"
	"github.com/vulnwatch/vulnwatch-client/resterror"
	"github.com/vulnwatch/vulnwatch-client/session"
)

const (
	testIssuer   = "https://id.example.com/realm"
	testClientID = "vulnwatch-dashboard"
	testUsername = "jane"
	testPassword = "password123"
)

type spyProvider struct {
	silentErr        error
	silentCalls      int
	interactiveCalls int
	signOutCalls     int
}

func (p *spyProvider) SilentToken(context.Context) (string, error) {
	p.silentCalls++
	if p.silentErr != nil {
		return "", p.silentErr
	}
	return "renewed-token", nil
}

func (p *spyProvider) BeginInteractive(context.Context) error {
	p.interactiveCalls++
	return nil
}

func (p *spyProvider) SignOut(context.Context) error {
	p.signOutCalls++
	return nil
}

type fixture struct {
	store    credstore.Store
	provider *spyProvider
	manager  *session.Manager
}

// newFixture builds a manager against a mock backend issuing tokens for the
// test credentials.
func newFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()

	if handler == nil {
		handler = defaultBackend(t)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := memstore.New()
	resolver, err := authmode.NewResolver(store, testIssuer, testClientID)
	require.NoError(t, err)

	provider := &spyProvider{}
	manager, err := session.NewManager(server.URL+"/api", store, resolver,
		session.WithTokenProvider(provider),
	)
	require.NoError(t, err)

	return &fixture{store: store, provider: provider, manager: manager}
}

func defaultBackend(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/authentication/authenticate/", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Username != testUsername || creds.Password != testPassword {
			http.Error(w, `{"detail":"Forbidden"}`, http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"token":"issued-token"}`)
	})
	mux.HandleFunc("/api/users/me/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "JWT issued-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":1,"username":"jane","full_name":"Jane Doe","setting_list_size":25,"setting_theme":"dark"}`)
	})
	return mux
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
}

func (f *fixture) setFederated(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Set(credstore.FederatedUserKey(testIssuer, testClientID), `{"refresh_token":"r"}`))
}

func TestLoginStoresTokenAndProfile(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, session.StateAnonymous, f.manager.State())

	profile, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.Equal(t, "Jane Doe", profile.FullName)

	token, ok := f.store.Get(credstore.KeySessionToken)
	require.True(t, ok)
	require.Equal(t, "issued-token", token)

	cached, ok := f.manager.CachedProfile()
	require.True(t, ok)
	require.Equal(t, int64(1), cached.ID)
	require.Equal(t, "jane", cached.Username)

	listSize, ok := f.store.Get(credstore.KeyListPageSize)
	require.True(t, ok)
	require.Equal(t, "25", listSize)
	theme, ok := f.store.Get(credstore.KeyTheme)
	require.True(t, ok)
	require.Equal(t, "dark", theme)
}

func TestLoginForbiddenBecomesInvalidCredentials(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.manager.Login(context.Background(), testUsername, "wrong")
	require.Error(t, err)

	restErr, ok := resterror.AsError(err)
	require.True(t, ok)
	require.Equal(t, "Invalid credentials", restErr.Message)
	require.Equal(t, resterror.KindClientRejected, restErr.Kind)
	require.Equal(t, session.StateAnonymous, f.manager.State())

	_, hasToken := f.store.Get(credstore.KeySessionToken)
	require.False(t, hasToken)
}

func TestLoginOtherFailureBecomesNetworkError(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"database down"}`, http.StatusInternalServerError)
	}))

	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.Error(t, err)

	restErr, ok := resterror.AsError(err)
	require.True(t, ok)
	require.Equal(t, "Network error", restErr.Message)
}

func TestLoginTransportFailureBecomesNetworkError(t *testing.T) {
	store := memstore.New()
	resolver, err := authmode.NewResolver(store, "", "")
	require.NoError(t, err)
	manager, err := session.NewManager("http://127.0.0.1:1/api", store, resolver)
	require.NoError(t, err)

	_, err = manager.Login(context.Background(), testUsername, testPassword)
	require.Error(t, err)

	restErr, ok := resterror.AsError(err)
	require.True(t, ok)
	require.Equal(t, "Network error", restErr.Message)
	require.Equal(t, resterror.KindNetworkFailure, restErr.Kind)
}

func TestLogoutFromLocalSessionDoesNotSignOutProvider(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t)

	require.NoError(t, f.manager.Logout(context.Background()))
	require.Equal(t, session.StateAnonymous, f.manager.State())

	for _, key := range credstore.SessionKeys {
		_, ok := f.store.Get(key)
		require.False(t, ok, key)
	}
	require.Zero(t, f.provider.signOutCalls)
}

func TestLogoutFromFederatedSessionSignsOutProvider(t *testing.T) {
	f := newFixture(t, nil)
	f.setFederated(t)

	require.NoError(t, f.manager.Logout(context.Background()))
	require.Equal(t, 1, f.provider.signOutCalls)
}

func TestHandleAuthExpiredLocalTerminatesSession(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t)

	recovered, err := f.manager.HandleAuthExpired(context.Background())
	require.NoError(t, err)
	require.False(t, recovered)
	require.Equal(t, session.StateAnonymous, f.manager.State())

	_, hasToken := f.store.Get(credstore.KeySessionToken)
	require.False(t, hasToken)
}

func TestHandleAuthExpiredFederatedSilentRenewal(t *testing.T) {
	f := newFixture(t, nil)
	f.setFederated(t)

	recovered, err := f.manager.HandleAuthExpired(context.Background())
	require.NoError(t, err)
	require.True(t, recovered)
	require.Equal(t, 1, f.provider.silentCalls)
	require.Zero(t, f.provider.interactiveCalls)
}

func TestHandleAuthExpiredFederatedInteractionRequired(t *testing.T) {
	f := newFixture(t, nil)
	f.setFederated(t)
	f.provider.silentErr = credentials.ErrInteractionRequired

	recovered, err := f.manager.HandleAuthExpired(context.Background())
	require.NoError(t, err)
	require.False(t, recovered)
	require.Equal(t, 1, f.provider.interactiveCalls)
}

func TestHandleAuthExpiredFederatedOtherFailureClearsSession(t *testing.T) {
	f := newFixture(t, nil)
	f.setFederated(t)
	f.provider.silentErr = errors.New("provider unreachable")

	recovered, err := f.manager.HandleAuthExpired(context.Background())
	require.NoError(t, err)
	require.False(t, recovered)
	require.Equal(t, session.StateAnonymous, f.manager.State())
}

func TestManagerStartsAuthenticatedWithExistingSession(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.Set(credstore.KeySessionToken, "existing-token"))
	resolver, err := authmode.NewResolver(store, "", "")
	require.NoError(t, err)

	manager, err := session.NewManager("http://backend.local/api", store, resolver)
	require.NoError(t, err)
	require.Equal(t, session.StateAuthenticated, manager.State())
}
