// =============================================================================
// NTD Report Validation - Main Entry Point
// =============================================================================
//
// USAGE:
//   ntdcheck check      - Run the validation checks and write the reports
//   ntdcheck ingest     - Snapshot form uploads into the snapshot database
//   ntdcheck validate   - Validate the configuration and its inputs
//   ntdcheck version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Loading, checks and report writing
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/cal-itp/ntd-modernization/cmd"
)

func main() {
	cmd.Execute()
}
