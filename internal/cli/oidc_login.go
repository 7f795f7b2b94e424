package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/vulnwatch/vulnwatch-client/credentials/oidcprovider"
)

// signInInteractive drives the full federated sign-in from the CLI: it binds
// a loopback listener on the redirect address, starts the provider's
// authorization flow (the interaction handler shows the URL to open), waits
// for the provider redirect and completes the code exchange. The listener
// must be up before the flow starts or an eager browser redirect is lost.
func signInInteractive(ctx context.Context, provider *oidcprovider.Provider, redirectURL string) error {
	redirect, err := url.Parse(redirectURL)
	if err != nil || redirect.Host == "" {
		return errors.New("[signInInteractive] oidc.redirect_url must be an absolute URL with a host")
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return errors.Wrap(err, "[signInInteractive] listen on redirect address")
	}

	if err := provider.BeginInteractive(ctx); err != nil {
		listener.Close()
		return err
	}

	state, code, err := awaitCallback(ctx, listener, redirect.Path)
	if err != nil {
		return err
	}
	return provider.CompleteInteractive(ctx, state, code)
}

// awaitCallback serves the redirect endpoint on listener until one request
// carrying an authorization code arrives or ctx is done. The listener is
// closed before returning.
func awaitCallback(ctx context.Context, listener net.Listener, path string) (state, code string, err error) {
	type callback struct {
		state string
		code  string
	}
	results := make(chan callback, 1)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path != "" && path != "/" && r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintln(w, "Sign-in received. You can close this window.")
		select {
		case results <- callback{state: r.URL.Query().Get("state"), code: r.URL.Query().Get("code")}:
		default:
		}
	})}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	select {
	case cb := <-results:
		if cb.code == "" {
			return "", "", errors.New("[awaitCallback] redirect carried no authorization code")
		}
		return cb.state, cb.code, nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}
