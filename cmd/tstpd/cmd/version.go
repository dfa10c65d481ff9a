package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is set via -ldflags "-X .../cmd.buildVersion=..." at
// release build time; left at "dev" for local builds.
var buildVersion = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print tstpd's version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildVersion)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
