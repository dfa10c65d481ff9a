package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is tstpd's entry point, exported so the command tree can be
// extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "tstpd",
	Short: "Trustful SpaceTime Protocol node daemon",
}

var rootVerboseFlag bool

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
}

// ConfigureVerbosity raises the package-level logger to debug when -v
// is set. It never lowers the level, so a subcommand that first applies
// a config-driven level (applyLogLevel) keeps that level unless -v asks
// for more detail; call it after applyLogLevel, not before.
func ConfigureVerbosity() {
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute is tstpd's main entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
