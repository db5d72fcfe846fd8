// =============================================================================
// NTD Report Validation - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the configuration
// and the inputs it points to without running any check.
//
// COMMAND USAGE:
//   ntdcheck validate
//
// CHECKS PERFORMED:
//   1. The configuration loads and passes its struct tag validation
//   2. Every input file named in the configuration exists
//   3. Every input left empty resolves to an upload in the source
//   4. Inputs set to "snapshot" are read from the snapshot store
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cal-itp/ntd-modernization/internal/config"
	"github.com/cal-itp/ntd-modernization/internal/snapshot"
	"github.com/cal-itp/ntd-modernization/internal/source"
	"github.com/cal-itp/ntd-modernization/pkg/utils"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the inputs it names",
	Long: `The validate command loads the configuration, checks that every configured
input file exists and shows which upload would be used for every input that is
left to the source.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// input is one file a check run reads.
type input struct {
	label string
	form  string
	year  int
	path  string
}

func runValidate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Printf("Configuration:   %s\n", cfgFile)
	fmt.Printf("Fiscal years:    %d vs %d\n", cfg.ThisYear, cfg.LastYear)
	fmt.Printf("Source:          %s\n", cfg.Source.Kind)

	src, err := source.New(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	inputs := []input{
		{"roster", "", 0, cfg.Inputs.Roster},
		{"RR-20 current", "RR-20", cfg.ThisYear, cfg.Inputs.RR20.Current},
		{"RR-20 prior", "RR-20", cfg.LastYear, cfg.Inputs.RR20.Prior},
		{"A-10 current", "A-10", cfg.ThisYear, cfg.Inputs.A10.Current},
		{"A-10 prior", "A-10", cfg.LastYear, cfg.Inputs.A10.Prior},
		{"A-30", "A-30", cfg.ThisYear, cfg.Inputs.A30},
		{"Inventory", "Inventory", cfg.ThisYear, cfg.Inputs.Inventory},
	}

	var problems int
	for _, in := range inputs {
		msg, err := checkInput(ctx, src, in)
		if err != nil {
			problems++
			fmt.Printf("  ✗ %-14s %v\n", in.label, err)
			continue
		}
		fmt.Printf("  ✓ %-14s %s\n", in.label, msg)
	}

	if problems > 0 {
		return fmt.Errorf("%d input(s) could not be resolved", problems)
	}
	fmt.Println("Configuration is valid.")
	return nil
}

// checkInput reports where an input would be read from.
func checkInput(ctx context.Context, src source.Source, in input) (string, error) {
	if in.path == config.SnapshotInput {
		return fmt.Sprintf("latest snapshots of %s in %s", snapshot.Key(in.form, in.year), cfg.SnapshotDB), nil
	}
	if in.path != "" {
		path := in.path
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.InputDir, path)
		}
		if !utils.FileExists(path) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return path, nil
	}
	if in.form == "" {
		return "", errors.New("not configured")
	}

	form, err := source.LookupForm(in.form)
	if err != nil {
		return "", err
	}
	name, date, err := source.Latest(ctx, src, form.Prefix(in.year))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (uploaded %s)", name, date.Format("2006-01-02")), nil
}
