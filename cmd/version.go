package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/memora/internal/spacedrep"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "memora", version)
		fmt.Fprintln(cmd.OutOrStdout(), "parameters", spacedrep.DefaultParameters().Version)
	},
}
