// =============================================================================
// NTD Report Validation - Pipeline Module
// =============================================================================
//
// This module orchestrates one form's check run, from loading the uploads to
// the rendered report.
//
// CHECK PIPELINE:
//   1. Load the input tables (concurrently, see Loader)
//   2. Join the per-form tables and restrict them to the roster
//   3. Decode the tables into typed records
//   4. Derive metrics (service data only)
//   5. Run the rule passes and cross-form checks
//   6. Aggregate the findings and lay out the report
//   7. Write the report (unless dry run)
//
// ERRORS:
//   A missing input or column stops the form and is reported in Result.Error.
//   Rows that cannot be decoded are skipped and returned as Issues. Agencies
//   that are not on the roster are dropped silently and counted.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cal-itp/ntd-modernization/internal/checks"
	"github.com/cal-itp/ntd-modernization/internal/config"
	"github.com/cal-itp/ntd-modernization/internal/findings"
	"github.com/cal-itp/ntd-modernization/internal/metrics"
	"github.com/cal-itp/ntd-modernization/internal/report"
	"github.com/cal-itp/ntd-modernization/internal/rules"
	"github.com/cal-itp/ntd-modernization/internal/schema"
	"github.com/cal-itp/ntd-modernization/internal/source"
	"github.com/cal-itp/ntd-modernization/internal/table"
	"github.com/cal-itp/ntd-modernization/internal/types"
	"github.com/cal-itp/ntd-modernization/pkg/utils"
)

// serviceKeys are the columns the RR-20 service sheets are joined on.
var serviceKeys = []string{schema.ColOrganization, schema.ColFiscalYear, schema.ColMode}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one form's check run.
type Result struct {
	Form  Form
	RunID string

	// Findings is the aggregated finding table.
	Findings []types.Finding

	// Summary counts Findings.
	Summary findings.Summary

	// Report is the laid out workbook.
	Report report.Report

	// OutputFile is the written report. Empty on dry runs and failures.
	OutputFile string

	// Issues are the input rows that could not be decoded.
	Issues []schema.Issue

	// Dropped lists organizations removed because they are not on the
	// roster.
	Dropped []string

	// Error is set when the run failed.
	Error error

	Stats Stats
}

// Stats contains statistics about the run.
type Stats struct {
	RowsLoaded     int
	RecordsDecoded int
	ProcessingTime time.Duration
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner runs form checks for one configuration.
type Runner struct {
	cfg    *config.Config
	loader *Loader
	logger *zap.Logger

	// RunID identifies the run in logs and the summary.
	RunID string
}

// New creates a Runner. src resolves inputs the configuration leaves empty;
// it may be nil.
func New(cfg *config.Config, src source.Source, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))
	return &Runner{
		cfg:    cfg,
		loader: NewLoader(cfg, src, logger),
		logger: logger,
		RunID:  runID,
	}
}

// Run loads the form's inputs and checks them. The report is not written;
// see WriteReport.
func (r *Runner) Run(ctx context.Context, form Form) Result {
	start := time.Now()
	result := Result{Form: form, RunID: r.RunID}
	logger := r.logger.With(zap.String("form", string(form)))

	// =========================================================================
	// STEP 1: LOAD INPUTS
	// =========================================================================

	logger.Info("loading inputs")
	in, err := r.loader.Load(ctx, form)
	if err != nil {
		result.Error = fmt.Errorf("failed to load %s inputs: %w", form, err)
		return result
	}
	result.Stats.RowsLoaded = in.Rows()
	logger.Debug("loaded inputs", zap.Int("rows", result.Stats.RowsLoaded), zap.Int("roster", len(in.Roster)))

	// =========================================================================
	// STEPS 2-6: JOIN, DECODE, CHECK, AGGREGATE
	// =========================================================================

	current, prior := r.cfg.Years()
	c := &formRun{
		cfg:     r.cfg,
		in:      in,
		decoder: schema.NewDecoder(r.cfg.DecodeColumns()),
		checker: checks.New(rules.Years{Current: current, Prior: prior}, logger),
		logger:  logger,
	}

	switch form {
	case FormRR20Service:
		err = c.service()
	case FormRR20Financial:
		err = c.financial()
	case FormA10:
		err = c.facilities()
	case FormVOMS:
		err = c.voms()
	default:
		err = fmt.Errorf("unknown form %q", form)
	}
	result.Issues = c.issues
	result.Dropped = c.dropped
	result.Stats.RecordsDecoded = c.decoded
	if err != nil {
		result.Error = fmt.Errorf("%s checks failed: %w", form, err)
		return result
	}

	if err := findings.Validate(c.findings); err != nil {
		result.Error = fmt.Errorf("%s produced an invalid finding: %w", form, err)
		return result
	}

	result.Findings = c.findings
	result.Summary = findings.Summarize(c.findings)
	result.Report = c.report
	result.Stats.ProcessingTime = time.Since(start)

	for _, issue := range result.Issues {
		logger.Warn("skipped input row", zap.Error(issue))
	}
	logger.Info("checks complete",
		zap.Int("findings", result.Summary.Total),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("warnings", result.Summary.Warnings),
		zap.Int("issues", len(result.Issues)),
		zap.Int("dropped", len(result.Dropped)),
		zap.Duration("elapsed", result.Stats.ProcessingTime))
	return result
}

// WriteReport writes a successful result's report to the output directory and
// records the path in the result.
func (r *Runner) WriteReport(result *Result, now time.Time) error {
	if result.Error != nil {
		return fmt.Errorf("cannot write report of a failed run: %w", result.Error)
	}
	if err := utils.EnsureDirectories(r.cfg.OutputDir); err != nil {
		return err
	}

	name := utils.GenerateOutputFileName(r.cfg.ReportNameFormat,
		map[string]string{"form": result.Form.ReportName()}, now)
	path := filepath.Join(r.cfg.OutputDir, name)
	if err := report.WriteFile(path, result.Report); err != nil {
		return err
	}

	result.OutputFile = path
	r.logger.Info("wrote report", zap.String("form", string(result.Form)), zap.String("path", path))
	return nil
}

// =============================================================================
// FORM CHECKS
// =============================================================================

// formRun carries the state of one form's checks.
type formRun struct {
	cfg     *config.Config
	in      *Inputs
	decoder *schema.Decoder
	checker *checks.Checker
	logger  *zap.Logger

	findings []types.Finding
	report   report.Report
	issues   []schema.Issue
	dropped  []string
	decoded  int
}

// restrict keeps the roster's agencies.
func (c *formRun) restrict(t *table.Table) (*table.Table, error) {
	col, ok := schema.Column(t, schema.ColOrganization)
	if !ok {
		return nil, &types.ConfigError{
			Op:     "restrict to roster",
			Table:  t.Name,
			Column: schema.ColOrganization,
			Err:    types.ErrMissingColumn,
		}
	}
	out, dropped, err := table.RestrictToRoster(t, col, c.in.Roster)
	if err != nil {
		return nil, err
	}
	for _, org := range dropped {
		c.logger.Debug("dropping organization not on roster", zap.String("table", t.Name), zap.String("organization", org))
	}
	c.dropped = mergeDropped(c.dropped, dropped)
	return out, nil
}

// yearTables returns the tables of both years in current, prior order,
// skipping a missing year.
func (c *formRun) yearTables(get func(year int) (*table.Table, error)) ([]*table.Table, error) {
	current, prior := c.cfg.Years()
	var out []*table.Table
	for _, year := range []int{current, prior} {
		t, err := get(year)
		if err != nil {
			return nil, err
		}
		if t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *formRun) service() error {
	sheets := c.cfg.Sheets
	parts, err := c.yearTables(func(year int) (*table.Table, error) {
		s := c.in.RR20[year]
		if s == nil {
			return nil, nil
		}
		joinWith := []*table.Table{s[sheets.ServiceData], s[sheets.ExpensesByMode]}
		if rev := s[sheets.RevenuesByMode]; rev != nil {
			joinWith = append(joinWith, rev)
		}
		return table.Join(fmt.Sprintf("rr20 service %d", year), serviceKeys, joinWith...)
	})
	if err != nil {
		return err
	}

	joined, err := c.restrict(table.Concat("rr20 service", parts...))
	if err != nil {
		return err
	}
	records, issues, err := c.decoder.Service(joined)
	if err != nil {
		return err
	}
	c.issues = append(c.issues, issues...)
	c.decoded += len(records)

	missing := c.checker.MissingServiceData(records)

	prepared, err := metrics.Attach(metrics.FillZero(records), metrics.Defaults)
	if err != nil {
		return err
	}
	ruleFindings, err := c.checker.ServiceRules(prepared, rules.WithThresholds(rules.DefaultServiceRules(), c.cfg.Thresholds))
	if err != nil {
		return err
	}

	c.findings = findings.Aggregate(missing, ruleFindings)
	c.report = report.RR20Service(c.findings)
	return nil
}

func (c *formRun) financial() error {
	sheet := c.cfg.Sheets.Financials
	parts, err := c.yearTables(func(year int) (*table.Table, error) {
		return c.in.RR20[year][sheet], nil
	})
	if err != nil {
		return err
	}

	t, err := c.restrict(table.Concat("rr20 financials", parts...))
	if err != nil {
		return err
	}
	records, issues, err := c.decoder.Financial(t)
	if err != nil {
		return err
	}
	c.issues = append(c.issues, issues...)
	c.decoded += len(records)

	var inventory []types.InventoryVehicle
	if c.in.Inventory != nil {
		inv, err := c.restrict(c.in.Inventory)
		if err != nil {
			return err
		}
		var invIssues []schema.Issue
		inventory, invIssues, err = c.decoder.Inventory(inv)
		if err != nil {
			return err
		}
		c.issues = append(c.issues, invIssues...)
		c.decoded += len(inventory)
	}

	c.findings = findings.Aggregate(
		c.checker.FinancialFigures(records, c.cfg.FinancialFields),
		c.checker.RevenueExpenseBalance(records),
		c.checker.CapitalDoubleEntry(records, c.cfg.FundingSourceColumns),
		c.checker.NewFleetCapital(records, inventory),
	)
	c.report = report.RR20Financial(c.findings)
	return nil
}

func (c *formRun) facilities() error {
	parts, err := c.yearTables(func(year int) (*table.Table, error) {
		return c.in.A10[year], nil
	})
	if err != nil {
		return err
	}

	t, err := c.restrict(table.Concat("a10 facilities", parts...))
	if err != nil {
		return err
	}
	records, issues, err := c.decoder.Facilities(t)
	if err != nil {
		return err
	}
	c.issues = append(c.issues, issues...)
	c.decoded += len(records)

	c.findings = findings.Aggregate(c.checker.Facilities(records))
	c.report = report.A10(c.findings, c.checker.Years().Current)
	return nil
}

func (c *formRun) voms() error {
	current := c.checker.Years().Current

	a30Table, err := c.restrict(c.in.A30)
	if err != nil {
		return err
	}
	a30, issues, err := c.decoder.A30(a30Table)
	if err != nil {
		return err
	}
	c.issues = append(c.issues, issues...)

	invTable, err := c.restrict(c.in.Inventory)
	if err != nil {
		return err
	}
	inventory, issues, err := c.decoder.Inventory(invTable)
	if err != nil {
		return err
	}
	c.issues = append(c.issues, issues...)

	var service []types.ServiceRecord
	if sheets := c.in.RR20[current]; sheets != nil {
		svcTable, err := c.restrict(sheets[c.cfg.Sheets.ServiceData])
		if err != nil {
			return err
		}
		service, issues, err = c.decoder.Service(svcTable)
		if err != nil {
			return err
		}
		c.issues = append(c.issues, issues...)
	}
	c.decoded += len(a30) + len(inventory) + len(service)

	vins := findings.Aggregate(c.checker.VINReconciliation(a30, inventory))
	totals := findings.Aggregate(c.checker.FleetBounds(a30, inventory, service))

	c.findings = findings.Aggregate(vins, totals)
	c.report = report.VOMS(vins, findings.Failures(vins), totals)
	return nil
}

// mergeDropped appends the organizations not already listed.
func mergeDropped(all, more []string) []string {
	seen := make(map[string]bool, len(all))
	for _, org := range all {
		seen[org] = true
	}
	for _, org := range more {
		if !seen[org] {
			seen[org] = true
			all = append(all, org)
		}
	}
	return all
}
