package cli

import (
	"github.com/spf13/cobra"

	"github.com/vulnwatch/vulnwatch-client/authmode"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWithStack(runWhoami),
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, client *stack, args []string) error {
	state := client.resolver.Resolve()
	switch state.Mode {
	case authmode.ModeAnonymous:
		printer.Println("Not signed in")
		return nil
	case authmode.ModeLocal:
		printer.Println("Signed in with local credentials")
	case authmode.ModeFederated:
		printer.Printf("Signed in through %s\n", state.Issuer)
	}

	if profile, ok := client.sessions.CachedProfile(); ok {
		printer.Println()
		printer.Printf("%s  %s\n", printer.Bold("Username:"), profile.Username)
		if profile.FullName != "" {
			printer.Printf("%s %s\n", printer.Bold("Full name:"), profile.FullName)
		}
		if profile.Email != "" {
			printer.Printf("%s     %s\n", printer.Bold("Email:"), profile.Email)
		}
		if profile.IsSuperuser {
			printer.Println("Superuser: yes")
		}
	}
	return nil
}
