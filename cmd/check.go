// =============================================================================
// NTD Report Validation - Check Command
// =============================================================================
//
// This file defines the 'check' command, the main command of the tool. It
// runs the validation checks of one form, or of all of them, and writes the
// reports.
//
// COMMAND USAGE:
//   ntdcheck check [flags]
//
// FLAGS:
//   --form     : rr20-service, rr20-financial, a10, voms or all (default all)
//   --dry-run  : Run the checks without writing any file
//
// PROCESSING PIPELINE:
//   1. Resolve the upload source (local folder or GCS bucket)
//   2. For each form, in order:
//      a. Load the inputs (latest upload unless configured explicitly)
//      b. Run the checks and lay out the report
//      c. Write the report to the output directory
//   3. Write the issue log (undecodable input rows)
//   4. Write the run summary
//
// A form that fails does not stop the others. The command exits with an
// error if any form failed.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/pipeline"
	"github.com/cal-itp/ntd-modernization/internal/source"
	"github.com/cal-itp/ntd-modernization/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// formName selects the form(s) to check.
var formName string

// dryRun runs the checks without writing output files.
var dryRun bool

// =============================================================================
// CHECK COMMAND DEFINITION
// =============================================================================

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the validation checks and write the reports",
	Long: `The check command loads this year's and last year's submissions, runs the
validation checks of the selected form and writes an Excel report with one row
per finding to the output directory.

Inputs named in the configuration are read from the input directory. Inputs
left empty are resolved to the most recent dated upload in the configured
source.

On completion:
  - One report per form is written to the output directory
  - Rows that could not be read are listed in an issue log
  - A run summary is written next to the reports`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(
		&formName,
		"form",
		"all",
		"Form to check: rr20-service, rr20-financial, a10, voms or all",
	)

	checkCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Run the checks without writing reports or logs",
	)
}

// =============================================================================
// MAIN CHECK FUNCTION
// =============================================================================

func runCheck(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()

	forms, err := pipeline.ParseForm(formName)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 1: RESOLVE THE UPLOAD SOURCE
	// =========================================================================

	src, err := source.New(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	runner := pipeline.New(cfg, src, logger)
	logger.Info("starting check run",
		zap.String("run_id", runner.RunID),
		zap.Int("forms", len(forms)),
		zap.Int("this_year", cfg.ThisYear),
		zap.Int("last_year", cfg.LastYear),
		zap.Bool("dry_run", dryRun))

	// =========================================================================
	// STEP 2: RUN EACH FORM
	// =========================================================================

	summary := utils.RunSummary{
		RunID:     runner.RunID,
		StartTime: startTime,
		ThisYear:  cfg.ThisYear,
		LastYear:  cfg.LastYear,
	}
	var issues []utils.IssueLogEntry
	var failed int

	for _, form := range forms {
		result := runner.Run(ctx, form)
		if result.Error == nil && !dryRun {
			if err := runner.WriteReport(&result, startTime); err != nil {
				result.Error = err
			}
		}

		fs := utils.FormSummary{
			Form:          string(form),
			OutputFile:    result.OutputFile,
			Findings:      result.Summary.Total,
			Passed:        result.Summary.Passed,
			Failed:        result.Summary.Failed,
			Warnings:      result.Summary.Warnings,
			Organizations: result.Summary.Organizations,
			DecodeIssues:  len(result.Issues),
			Dropped:       len(result.Dropped),
		}
		if result.Error != nil {
			failed++
			fs.Error = result.Error.Error()
			logger.Error("form check failed", zap.String("form", string(form)), zap.Error(result.Error))
			fmt.Printf("  ✗ %s: %v\n", form, result.Error)
		} else {
			fmt.Printf("  ✓ %s: %s\n", form, result.Summary)
		}
		summary.Forms = append(summary.Forms, fs)

		for _, issue := range result.Issues {
			issues = append(issues, utils.IssueLogEntry{
				Form:    string(form),
				Table:   issue.Table,
				Row:     issue.Row,
				Column:  issue.Column,
				Message: issue.Err.Error(),
			})
		}
	}
	summary.EndTime = time.Now()

	// =========================================================================
	// STEPS 3-4: ISSUE LOG AND RUN SUMMARY
	// =========================================================================

	if !dryRun {
		if err := utils.EnsureDirectories(cfg.OutputDir); err != nil {
			return err
		}
		if path, err := utils.WriteIssueLog(issues, cfg.OutputDir, startTime); err != nil {
			logger.Error("failed to write issue log", zap.Error(err))
		} else if path != "" {
			logger.Info("wrote issue log", zap.String("path", path), zap.Int("issues", len(issues)))
		}
		if path, err := utils.WriteSummaryLog(summary, cfg.OutputDir); err != nil {
			logger.Error("failed to write run summary", zap.Error(err))
		} else {
			logger.Info("wrote run summary", zap.String("path", path))
		}
	}

	fmt.Println("\n=== Check Run Complete ===")
	fmt.Printf("Forms checked:   %d\n", len(forms))
	fmt.Printf("Failed:          %d\n", failed)
	fmt.Printf("Input issues:    %d\n", len(issues))
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(startTime))

	if failed > 0 {
		return fmt.Errorf("%d of %d form check(s) failed", failed, len(forms))
	}
	return nil
}
