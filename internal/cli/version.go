package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(w, version)
			return nil
		}

		figure.NewFigure("vulnwatchctl", "cybermedium", true).Print()
		fmt.Fprintf(w, "version %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if revision, at, ok := vcsStamp(); ok {
			fmt.Fprintf(w, "built from %s at %s\n", revision, at)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print version string only")
	rootCmd.AddCommand(versionCmd)
}

// vcsStamp reads the VCS revision the Go linker embedded into the binary.
// Binaries built outside a checkout carry no stamp.
func vcsStamp() (revision, at string, ok bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", "", false
	}
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			at = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return "", "", false
	}
	if modified {
		revision += " (modified)"
	}
	return revision, at, true
}
