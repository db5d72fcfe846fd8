// =============================================================================
// NTD Report Validation - File Utilities
// =============================================================================
//
// This module provides the file handling around a check run:
//   - Directory management
//   - Report file naming
//   - The input issue log (rows the decoder rejected)
//   - The run summary
//
// Both logs are plain text files written next to the reports so that a
// liaison can see what was read and what was skipped without digging through
// the application log.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const rule = "================================================================================\n"

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the directories if they don't exist.
func EnsureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateOutputFileName builds a report file name from a format.
//
// PARAMETERS:
//   - format: The file name format with placeholders.
//   - params: Additional placeholders, e.g. {"form": "rr20_service"}.
//   - now: The run time.
//
// PLACEHOLDERS:
//   - {uuid}: A random UUID
//   - {timestamp}: YYYYMMDD_HHMMSS
//   - {date}: YYYY-MM-DD
//   - any key of params
//
// The result always ends in .xlsx.
func GenerateOutputFileName(format string, params map[string]string, now time.Time) string {
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("2006-01-02"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}
	return result
}

// =============================================================================
// ISSUE LOG
// =============================================================================

// IssueLogEntry is one input row that could not be decoded.
type IssueLogEntry struct {
	Form    string
	Table   string
	Row     int
	Column  string
	Message string
}

// WriteIssueLog writes the entries to issue_log_<timestamp>.txt in outputDir.
// Nothing is written when there are no entries.
func WriteIssueLog(entries []IssueLogEntry, outputDir string, now time.Time) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, fmt.Sprintf("issue_log_%s.txt", now.Format("20060102_150405")))
	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create issue log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "NTD Report Validation - Input Issues\n"+
		"Generated: %s\n"+
		"Total Issues: %d\n"+rule+"\n",
		now.Format("2006-01-02 15:04:05"), len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Issue #%d\n", i+1)
		fmt.Fprintf(writer, "  Form:    %s\n", entry.Form)
		fmt.Fprintf(writer, "  Table:   %s\n", entry.Table)
		if entry.Row > 0 {
			fmt.Fprintf(writer, "  Row:     %d\n", entry.Row)
		}
		if entry.Column != "" {
			fmt.Fprintf(writer, "  Column:  %s\n", entry.Column)
		}
		fmt.Fprintf(writer, "  Message: %s\n\n", entry.Message)
	}

	writer.WriteString(rule + "End of Issue Log\n")
	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush issue log: %w", err)
	}
	return logPath, nil
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about a check run.
type RunSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	ThisYear  int
	LastYear  int
	Forms     []FormSummary
}

// FormSummary describes the outcome of one form's checks.
type FormSummary struct {
	Form          string
	OutputFile    string
	Findings      int
	Passed        int
	Failed        int
	Warnings      int
	Organizations int
	DecodeIssues  int
	Dropped       int
	Error         string
}

// WriteSummaryLog writes the summary to run_summary_<timestamp>.txt in
// outputDir and returns its path.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir,
		fmt.Sprintf("run_summary_%s.txt", summary.StartTime.Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	failed := 0
	for _, f := range summary.Forms {
		if f.Error != "" {
			failed++
		}
	}

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "NTD Report Validation - Run Summary\n"+rule+"\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Fiscal Years:   %d vs %d\n\n"+
		"Statistics:\n"+
		"  Forms Checked:  %d\n"+
		"  Failed:         %d\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.ThisYear, summary.LastYear,
		len(summary.Forms), failed)

	for _, f := range summary.Forms {
		fmt.Fprintf(writer, "Form: %s\n", f.Form)
		writer.WriteString("--------------------------------------------------------------------------------\n")
		if f.Error != "" {
			fmt.Fprintf(writer, "  Error:         %s\n\n", f.Error)
			continue
		}
		if f.OutputFile != "" {
			fmt.Fprintf(writer, "  Report:        %s\n", f.OutputFile)
		}
		fmt.Fprintf(writer, "  Organizations: %d\n", f.Organizations)
		fmt.Fprintf(writer, "  Findings:      %d (%d passed, %d failed, %d warnings)\n",
			f.Findings, f.Passed, f.Failed, f.Warnings)
		fmt.Fprintf(writer, "  Input Issues:  %d\n", f.DecodeIssues)
		fmt.Fprintf(writer, "  Not on Roster: %d\n\n", f.Dropped)
	}

	writer.WriteString(rule + "End of Summary\n")
	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}
