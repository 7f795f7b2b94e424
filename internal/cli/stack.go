package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulnwatch/vulnwatch-client/apiclient"
	"github.com/vulnwatch/vulnwatch-client/authmode"
	"github.com/vulnwatch/vulnwatch-client/credentials"
	"github.com/vulnwatch/vulnwatch-client/credentials/oidcprovider"
	"github.com/vulnwatch/vulnwatch-client/credstore"
	"github.com/vulnwatch/vulnwatch-client/credstore/cryptstore"
	"github.com/vulnwatch/vulnwatch-client/credstore/filestore"
	"github.com/vulnwatch/vulnwatch-client/resources"
	"github.com/vulnwatch/vulnwatch-client/resterror"
	"github.com/vulnwatch/vulnwatch-client/session"
)

// stack is the fully wired client for one invocation: credential store,
// session manager and resource services all sharing the same resolver.
type stack struct {
	store     credstore.Store
	resolver  *authmode.Resolver
	provider  *oidcprovider.Provider
	sessions  *session.Manager
	resources *resources.Registry
}

// runWithStack builds the wired client for one invocation and runs the
// command body with it. An authorization failure from any call goes through
// the session expiry transition before the error reaches the user.
func runWithStack(run func(cmd *cobra.Command, client *stack, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := buildStack(cmd.Context())
		if err != nil {
			return err
		}
		return client.finishExpiredSession(cmd.Context(), run(cmd, client, args))
	}
}

// finishExpiredSession reacts to a 401/403 received outside of login. A local
// session terminates and all session data is cleared; a federated session
// attempts silent renewal or starts the interactive sign-in. The original
// error is returned either way so the user sees why the command failed.
func (s *stack) finishExpiredSession(ctx context.Context, err error) error {
	if err == nil || resterror.KindOf(err) != resterror.KindAuthExpired {
		return err
	}
	if _, handleErr := s.sessions.HandleAuthExpired(ctx); handleErr != nil {
		log.Warn().Err(handleErr).Msg("session expiry handling failed")
	}
	return err
}

// buildStack wires the client from the loaded configuration. The OIDC
// provider is only constructed when issuer and client ID are configured,
// since construction performs discovery against the issuer.
func buildStack(ctx context.Context) (*stack, error) {
	if cfg.Server.URL == "" {
		return nil, errors.New("server.url is not configured, set it in the config file or VULNWATCH_SERVER_URL")
	}

	var store credstore.Store
	store, err := filestore.New(cfg.Store.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open credential store")
	}
	if cfg.Store.Passphrase != "" {
		store, err = cryptstore.New(store, cfg.Store.Passphrase)
		if err != nil {
			return nil, errors.Wrap(err, "open encrypted credential store")
		}
	}

	resolver, err := authmode.NewResolver(store, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "build auth mode resolver")
	}

	var provider *oidcprovider.Provider
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID != "" {
		provider, err = oidcprovider.New(ctx, store, cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.RedirectURL,
			oidcprovider.WithInteractionHandler(printInteractionURL))
		if err != nil {
			return nil, errors.Wrap(err, "build OIDC provider")
		}
	}

	attacherOptions := []credentials.AttacherOption{
		credentials.WithLocalScheme(cfg.Server.Scheme),
	}
	if provider != nil {
		attacherOptions = append(attacherOptions, credentials.WithTokenProvider(provider))
	}
	attacher, err := credentials.NewAttacher(resolver, attacherOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "build credential attacher")
	}

	api, err := apiclient.New(cfg.Server.URL, apiclient.WithAttacher(attacher))
	if err != nil {
		return nil, errors.Wrap(err, "build API client")
	}

	managerOptions := []session.ManagerOption{
		session.WithLocalScheme(cfg.Server.Scheme),
	}
	if provider != nil {
		managerOptions = append(managerOptions, session.WithTokenProvider(provider))
	}
	sessions, err := session.NewManager(cfg.Server.URL, store, resolver, managerOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "build session manager")
	}

	return &stack{
		store:     store,
		resolver:  resolver,
		provider:  provider,
		sessions:  sessions,
		resources: resources.NewRegistry(api),
	}, nil
}

// printInteractionURL asks the user to open the provider URL themselves.
// The CLI has no embedded browser, so the redirect completes out of band.
func printInteractionURL(_ context.Context, providerURL string) error {
	printer.Println("Open the following URL in your browser to continue:")
	printer.Println("  " + providerURL)
	return nil
}
