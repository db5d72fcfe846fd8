// =============================================================================
// NTD Report Validation - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// ('check', 'ingest', 'validate', 'version') is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (ntdcheck)
//   ├── checkCmd    (ntdcheck check)
//   ├── ingestCmd   (ntdcheck ingest)
//   ├── validateCmd (ntdcheck validate)
//   └── versionCmd  (ntdcheck version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration (file, then NTD_* environment variables)
//   3. Setting up the zap logger shared by all commands
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cal-itp/ntd-modernization/internal/config"
	"github.com/cal-itp/ntd-modernization/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// cfg and logger are set up before any subcommand runs.
var (
	cfg    *config.Config
	logger *zap.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "ntdcheck",
	Short: "NTD report validation - check subrecipient NTD submissions before they go to FTA",
	Long: `ntdcheck validates the annual National Transit Database reports that rural
subrecipients submit through BlackCat. It compares this year's figures with
last year's, cross-checks the forms against each other and writes one Excel
report per form for the reviewers.

Forms checked:
  rr20-service    RR-20 service data year-over-year metrics
  rr20-financial  RR-20 financial figures and funding balances
  a10             A-10 stations and maintenance facilities
  voms            A-30 vehicles against the revenue vehicle inventory

Example Usage:
  ntdcheck check --form all            # Run every check and write the reports
  ntdcheck check --form a10 --dry-run  # Run the A-10 checks without writing
  ntdcheck ingest --form RR-20         # Snapshot the latest RR-20 upload
  ntdcheck validate                    # Validate the configuration`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := newLogger(cfg)
		if err != nil {
			return err
		}
		logger = l
		logger.Debug("configuration loaded",
			zap.String("config", cfgFile),
			zap.Int("this_year", cfg.ThisYear),
			zap.Int("last_year", cfg.LastYear))
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// newLogger builds the JSON production logger. Logs go to stderr and, when
// log_file is set, to that file as well.
//
// PARAMETERS:
//   - cfg: The loaded configuration (log_level, log_file).
//
// RETURNS:
//   - The logger.
//   - An error if the log level is invalid or the log file cannot be opened.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	if cfg.LogFile != "" {
		if err := utils.EnsureDirectories(filepath.Dir(cfg.LogFile)); err != nil {
			return nil, err
		}
		zc.OutputPaths = append(zc.OutputPaths, cfg.LogFile)
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}
