// =============================================================================
// NTD Report Validation - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   ntdcheck version
//
// OUTPUT:
//   NTD Report Validation
//   Version:    0.4.0
//   Build Date: 2024-02-01
//   Go Version: go1.25.3
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version and BuildDate are set at build time:
//
//	go build -ldflags "-X 'github.com/cal-itp/ntd-modernization/cmd.Version=0.4.0' -X 'github.com/cal-itp/ntd-modernization/cmd.BuildDate=2024-02-01'"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "NTD Report Validation")
		fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", BuildDate)
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
