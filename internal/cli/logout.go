package cli

import (
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the local session",
	Long: `Clear all session data from the credential store. When a federated
session is active the provider's sign-out endpoint is invoked as well.`,
	RunE: runWithStack(runLogout),
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, client *stack, args []string) error {
	if err := client.sessions.Logout(cmd.Context()); err != nil {
		return err
	}
	printer.Success("Signed out")
	return nil
}
