package cli

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
	loginOIDC     bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with username/password or through the OIDC provider",
	Long: `Sign in against the backend. With --username the local password flow is
used and the issued session token is written to the credential store; the
password can be passed with --password or entered on standard input.

With --oidc the configured OpenID Connect provider is used instead: the
command prints the provider URL to open, listens on oidc.redirect_url for the
redirect and completes the sign-in.`,
	RunE: runWithStack(runLogin),
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username to sign in with")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (read from stdin when omitted)")
	loginCmd.Flags().BoolVar(&loginOIDC, "oidc", false, "sign in through the configured OIDC provider")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, client *stack, args []string) error {
	if loginOIDC {
		return runLoginOIDC(cmd, client)
	}
	if loginUsername == "" {
		return errors.New("either --username or --oidc is required")
	}

	password := loginPassword
	if password == "" {
		printer.Printf("Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return errors.Wrap(err, "read password")
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	profile, err := client.sessions.Login(cmd.Context(), loginUsername, password)
	if err != nil {
		return err
	}

	if profile != nil && profile.FullName != "" {
		printer.Success("Signed in as %s (%s)", profile.FullName, loginUsername)
	} else {
		printer.Success("Signed in as %s", loginUsername)
	}
	return nil
}

func runLoginOIDC(cmd *cobra.Command, client *stack) error {
	if client.provider == nil {
		return errors.New("oidc.issuer and oidc.client_id must be configured for federated sign-in")
	}
	if err := signInInteractive(cmd.Context(), client.provider, cfg.OIDC.RedirectURL); err != nil {
		return err
	}
	printer.Success("Signed in through %s", cfg.OIDC.Issuer)
	return nil
}
