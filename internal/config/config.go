// =============================================================================
// NTD Report Validation - Configuration Module
// =============================================================================
//
// This module loads the application configuration.
//
// LOAD ORDER:
//   1. YAML file (config.yaml by default)
//   2. Environment overrides, prefix NTD (e.g. NTD_THIS_YEAR, NTD_SOURCE_BUCKET)
//   3. Defaults for anything still unset
//   4. Validation
//
// SCHEMA DRIFT:
//   Column renames between reporting cycles are declared once under
//   column_mappings, keyed by fiscal year, and applied when the input tables
//   are loaded.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "NTD"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration.
type Config struct {
	// =========================================================================
	// REPORTING CYCLE
	// =========================================================================

	// ThisYear is the fiscal year being validated.
	// Default: the current calendar year
	ThisYear int `yaml:"this_year" envconfig:"THIS_YEAR" validate:"gte=1990,lte=2100"`

	// LastYear is the fiscal year compared against.
	// Default: ThisYear - 1
	LastYear int `yaml:"last_year" envconfig:"LAST_YEAR" validate:"gte=1990,ltfield=ThisYear"`

	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is where local form uploads and the roster are read from.
	// Default: "./input"
	InputDir string `yaml:"input_dir" envconfig:"INPUT_DIR"`

	// OutputDir is where validation reports are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional file that receives log output in addition to
	// stderr.
	LogFile string `yaml:"log_file" envconfig:"LOG_FILE"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// ReportNameFormat defines the report file name.
	// Placeholders:
	//   {form}      - report name (rr20_service, rr20_financial, a10, voms)
	//   {date}      - run date (YYYY-MM-DD)
	//   {timestamp} - run timestamp (YYYYMMDD_HHMMSS)
	//   {uuid}      - a random UUID
	// Default: "{form}_check_report_{date}.xlsx"
	ReportNameFormat string `yaml:"report_name_format" envconfig:"REPORT_NAME_FORMAT"`

	// =========================================================================
	// STORAGE
	// =========================================================================

	// Source is where form uploads are discovered.
	Source SourceConfig `yaml:"source" envconfig:"SOURCE"`

	// SnapshotDB is the SQLite database holding ingested snapshots.
	// Default: "./data/snapshots.db"
	SnapshotDB string `yaml:"snapshot_db" envconfig:"SNAPSHOT_DB"`

	// =========================================================================
	// INPUTS
	// =========================================================================

	// Inputs names the files a check run reads. Empty entries are resolved
	// to the most recent upload in Source.
	Inputs InputsConfig `yaml:"inputs" envconfig:"INPUTS"`

	// Sheets names the workbook sheets each form is read from.
	Sheets SheetsConfig `yaml:"sheets" envconfig:"SHEETS"`

	// CSVSettings applies to every CSV input.
	CSVSettings CSVSettings `yaml:"csv_settings" envconfig:"CSV"`

	// =========================================================================
	// RULES
	// =========================================================================

	// Thresholds overrides the fractional change threshold of a service
	// metric, e.g. cost_per_hr: 0.3.
	Thresholds map[string]float64 `yaml:"thresholds" envconfig:"THRESHOLDS" validate:"dive,gt=0"`

	// FinancialFields are the funding sources compared year over year.
	FinancialFields []string `yaml:"financial_fields" envconfig:"FINANCIAL_FIELDS"`

	// FundingSourceColumns are the Financials columns whose sum must equal
	// capital expenses by mode.
	FundingSourceColumns []string `yaml:"funding_source_columns" envconfig:"FUNDING_SOURCE_COLUMNS"`

	// ColumnMappings renames source columns to their canonical names, per
	// fiscal year (year -> source name -> canonical name).
	ColumnMappings map[int]map[string]string `yaml:"column_mappings" ignored:"true"`
}

// SourceConfig selects the upload store.
type SourceConfig struct {
	// Kind is "local" (InputDir) or "gcs".
	// Default: "local"
	Kind string `yaml:"kind" envconfig:"KIND" validate:"oneof=local gcs"`

	// Bucket is the GCS bucket holding uploads.
	Bucket string `yaml:"bucket" envconfig:"BUCKET" validate:"required_if=Kind gcs"`

	// Prefix narrows listing to a folder of the bucket or directory.
	Prefix string `yaml:"prefix" envconfig:"PREFIX"`

	// Project is the GCP project, used in log output only.
	Project string `yaml:"project" envconfig:"PROJECT"`

	// CredentialsFile is an optional service account key. Application
	// default credentials are used when empty.
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// YearFiles names a form's file for the current and prior year.
type YearFiles struct {
	Current string `yaml:"current" envconfig:"CURRENT"`
	Prior   string `yaml:"prior" envconfig:"PRIOR"`
}

// SnapshotInput, given as an input file, reads that input from the latest
// per-agency snapshots in SnapshotDB instead of a file.
const SnapshotInput = "snapshot"

// InputsConfig names the input files of a check run. An empty entry resolves
// to the latest upload in Source; SnapshotInput reads the snapshot store.
type InputsConfig struct {
	// Roster is the subrecipient roster CSV. Required for check runs.
	Roster string `yaml:"roster" envconfig:"ROSTER"`

	RR20      YearFiles `yaml:"rr20" envconfig:"RR20"`
	A10       YearFiles `yaml:"a10" envconfig:"A10"`
	A30       string    `yaml:"a30" envconfig:"A30"`
	Inventory string    `yaml:"inventory" envconfig:"INVENTORY"`
}

// SheetsConfig names the workbook sheets.
type SheetsConfig struct {
	ServiceData    string `yaml:"service_data" envconfig:"SERVICE_DATA"`
	ExpensesByMode string `yaml:"expenses_by_mode" envconfig:"EXPENSES_BY_MODE"`
	RevenuesByMode string `yaml:"revenues_by_mode" envconfig:"REVENUES_BY_MODE"`
	Financials     string `yaml:"financials" envconfig:"FINANCIALS"`
	Facilities     string `yaml:"facilities" envconfig:"FACILITIES"`
	A30            string `yaml:"a30" envconfig:"A30"`
	Inventory      string `yaml:"inventory" envconfig:"INVENTORY"`
}

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the field separator: ",", "|", "tab" or ";".
	// Default: ","
	Delimiter string `yaml:"delimiter" envconfig:"DELIMITER"`

	// HeaderRow is the 1-indexed row holding the column headers.
	// Default: 1
	HeaderRow int `yaml:"header_row" envconfig:"HEADER_ROW"`

	// DataStartRow is the 1-indexed row where data begins.
	// Default: the row after HeaderRow
	DataStartRow int `yaml:"data_start_row" envconfig:"DATA_START_ROW"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultFinancialFields are the funding sources compared year over year.
var DefaultFinancialFields = []string{
	"FTA_Formula_Grants_for_Rural_Areas_5311",
	"Other_Directly_Generated_Funds",
	"Fare_Revenues",
}

// DefaultFundingSourceColumns are the RR-20 capital funding columns.
var DefaultFundingSourceColumns = []string{
	"Other_Directly_Generated_Funds",
	"Local_Funds",
	"State_Funds",
	"FTA_Formula_Grants_for_Rural_Areas_5311",
	"Other_FTA_Funds",
	"Other_Federal_Funds",
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration file, applies environment overrides and
// defaults, and validates the result. A missing file is allowed when the
// environment supplies everything required.
func Load(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// Environment and defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	applyDefaults(&cfg, time.Now())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config, now time.Time) {
	if cfg.ThisYear == 0 {
		cfg.ThisYear = now.Year()
	}
	if cfg.LastYear == 0 {
		cfg.LastYear = cfg.ThisYear - 1
	}
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ReportNameFormat == "" {
		cfg.ReportNameFormat = "{form}_check_report_{date}.xlsx"
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "local"
	}
	if cfg.SnapshotDB == "" {
		cfg.SnapshotDB = "./data/snapshots.db"
	}

	s := &cfg.Sheets
	if s.ServiceData == "" {
		s.ServiceData = "Service Data"
	}
	if s.ExpensesByMode == "" {
		s.ExpensesByMode = "Expenses By Mode"
	}
	if s.RevenuesByMode == "" {
		s.RevenuesByMode = "Revenues By Mode"
	}
	if s.Financials == "" {
		s.Financials = "Financials - 2"
	}
	if s.Facilities == "" {
		s.Facilities = "A-10"
	}
	if s.A30 == "" {
		s.A30 = "A-30 (Rural) RVI"
	}
	if s.Inventory == "" {
		s.Inventory = "Revenue Vehicles"
	}

	if cfg.CSVSettings.Delimiter == "" {
		cfg.CSVSettings.Delimiter = ","
	}
	if cfg.CSVSettings.HeaderRow == 0 {
		cfg.CSVSettings.HeaderRow = 1
	}

	if len(cfg.FinancialFields) == 0 {
		cfg.FinancialFields = append([]string(nil), DefaultFinancialFields...)
	}
	if len(cfg.FundingSourceColumns) == 0 {
		cfg.FundingSourceColumns = append([]string(nil), DefaultFundingSourceColumns...)
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return nil
}

// Years returns the current and prior fiscal year.
func (c *Config) Years() (current, prior int) {
	return c.ThisYear, c.LastYear
}

// ColumnMapping returns the column renames for a fiscal year.
func (c *Config) ColumnMapping(year int) map[string]string {
	return c.ColumnMappings[year]
}

// DecodeColumns returns every Financials column the decoder must read: the
// compared funding sources and the capital funding columns.
func (c *Config) DecodeColumns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, col := range append(append([]string{}, c.FinancialFields...), c.FundingSourceColumns...) {
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	return out
}
