package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vulnwatch/vulnwatch-client/credentials/oidcprovider"
	"github.com/vulnwatch/vulnwatch-client/credstore"
	"github.com/vulnwatch/vulnwatch-client/credstore/memstore"
)

const oidcTestClientID = "vulnwatch-cli"

// newSigningIdP serves OIDC discovery and a token endpoint that records the
// grant it received.
func newSigningIdP(t *testing.T) (idp *httptest.Server, tokenForm *url.Values) {
	t.Helper()

	tokenForm = &url.Values{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"authorization_endpoint": %q,
			"token_endpoint": %q,
			"jwks_uri": %q
		}`, idp.URL, idp.URL+"/authorize", idp.URL+"/token", idp.URL+"/keys")
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*tokenForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"token_type":    "Bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	})

	idp = httptest.NewServer(mux)
	t.Cleanup(idp.Close)
	return idp, tokenForm
}

// freeRedirectURL reserves a loopback port and releases it for the flow under
// test to bind.
func freeRedirectURL(t *testing.T) string {
	t.Helper()
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := probe.Addr().String()
	require.NoError(t, probe.Close())
	return "http://" + address + "/callback"
}

func TestSignInInteractiveLoopbackFlow(t *testing.T) {
	idp, tokenForm := newSigningIdP(t)
	redirectURL := freeRedirectURL(t)

	store := memstore.New()
	urls := make(chan string, 1)
	provider, err := oidcprovider.New(context.Background(), store, idp.URL, oidcTestClientID, redirectURL,
		oidcprovider.WithInteractionHandler(func(_ context.Context, providerURL string) error {
			urls <- providerURL
			return nil
		}))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- signInInteractive(context.Background(), provider, redirectURL)
	}()

	authURL, err := url.Parse(<-urls)
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	// Play the provider redirect back to the loopback listener.
	resp, err := http.Get(redirectURL + "?state=" + url.QueryEscape(state) + "&code=auth-code")
	if err == nil {
		resp.Body.Close()
	}

	require.NoError(t, <-done)
	require.Equal(t, "authorization_code", tokenForm.Get("grant_type"))
	require.Equal(t, "auth-code", tokenForm.Get("code"))
	require.NotEmpty(t, tokenForm.Get("code_verifier"))

	record, ok := store.Get(credstore.FederatedUserKey(idp.URL, oidcTestClientID))
	require.True(t, ok)
	require.Contains(t, record, "access-1")
	require.Contains(t, record, "refresh-1")
}

func TestSignInInteractiveRejectsRelativeRedirectURL(t *testing.T) {
	idp, _ := newSigningIdP(t)

	store := memstore.New()
	provider, err := oidcprovider.New(context.Background(), store, idp.URL, oidcTestClientID, "/callback")
	require.NoError(t, err)

	require.Error(t, signInInteractive(context.Background(), provider, "/callback"))
}

func TestAwaitCallbackIgnoresOtherPathsAndHonorsContext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + listener.Addr().String()

	type result struct {
		state string
		code  string
		err   error
	}
	results := make(chan result, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		state, code, err := awaitCallback(ctx, listener, "/callback")
		results <- result{state: state, code: code, err: err}
	}()

	// A request to a different path must not complete the wait.
	resp, err := http.Get(base + "/favicon.ico")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(base + "/callback?state=s1&code=c1")
	if err == nil {
		resp.Body.Close()
	}

	got := <-results
	require.NoError(t, got.err)
	require.Equal(t, "s1", got.state)
	require.Equal(t, "c1", got.code)
}
