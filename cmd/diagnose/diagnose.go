package diagnose

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/juanfranblanco/vscode-solidity-sub001/cmd/version"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/batch"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/config"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/logger"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/report"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/sarif"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/errors"
)

// RunOptionsDiagnose holds the arguments for the diagnose command.
type RunOptionsDiagnose struct {
	Artifacts  []string `json:"artifacts,omitempty"`
	Findings   []string `json:"findings,omitempty"`
	Format     string   `json:"format,omitempty"`
	OutputPath string   `json:"output_path,omitempty"`
	NoIgnore   bool     `json:"no_ignore,omitempty"`
	Excerpt    bool     `json:"excerpt,omitempty"`
	Creation   bool     `json:"creation,omitempty"`
	Threads    int      `json:"threads,omitempty"`
}

const toolInformationURI = "https://github.com/juanfranblanco/vscode-solidity"

// Global variables for configuration and command arguments
var (
	AppConfig            *config.Config
	diagnoseOptions      RunOptionsDiagnose
	exampleDiagnoseUsage = `  # Map MythX findings onto the sources of one compiled contract
  soldiag diagnose --artifact build/contracts/Bank.json --findings mythx.json

  # Produce a SARIF report for several contracts sharing one Mythril report
  soldiag diagnose --artifact build/contracts/Bank.json --artifact build/contracts/Token.json --findings mythril.json --format sarif --output results/

  # One findings file per artifact, paired in order
  soldiag diagnose --artifact Bank.json --findings bank-issues.json --artifact Token.json --findings token-issues.json

  # Keep findings on public array getters and include marked source excerpts
  soldiag diagnose --artifact Bank.json --findings mythx.json --no-ignore --excerpt --format table

  # Resolve offsets against the creation bytecode
  soldiag diagnose --artifact Bank.json --findings mythx.json --creation`
)

// DiagnoseCmd represents the diagnose command.
var DiagnoseCmd = &cobra.Command{
	Use:                   "diagnose --artifact PATH [--artifact PATH...] --findings PATH [--findings PATH...] [--format json|sarif|table] [--output PATH] [--no-ignore] [--excerpt] [--creation] [-j THREADS]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleDiagnoseUsage,
	Short:                 "Map analyzer findings onto Solidity source locations",
	Long: `Reads compiled contract artifacts and MythX or Mythril findings, resolves every finding
location to a line and column of the original Solidity source, and writes deduplicated
diagnostics grouped per file.`,
	RunE: runDiagnoseCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runDiagnoseCommand executes the diagnose command.
func runDiagnoseCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	cfg := AppConfig
	if cfg == nil {
		cfg = config.Default()
	}
	lg := logger.NewLogger(cfg, "core-diagnose")

	return diagnose(cmd.Context(), cfg, &diagnoseOptions, cmd.OutOrStdout(), cmd.ErrOrStderr(), lg)
}

// diagnose runs the whole pipeline. Returned errors are *errors.CommandError carrying the exit code.
func diagnose(ctx context.Context, cfg *config.Config, o *RunOptionsDiagnose, stdout, stderr io.Writer, lg hclog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := validateDiagnoseArgs(o); err != nil {
		lg.Error("invalid diagnose arguments", "error", err)
		return errors.NewCommandError(o, fmt.Errorf("invalid arguments: %w", err), 1)
	}

	format, err := determineFormat(cfg, o)
	if err != nil {
		lg.Error("invalid output format", "error", err)
		return errors.NewCommandError(o, fmt.Errorf("invalid arguments: %w", err), 1)
	}
	normOpts, err := buildNormalizerOptions(cfg, o)
	if err != nil {
		lg.Error("invalid normalizer options", "error", err)
		return errors.NewCommandError(o, fmt.Errorf("invalid arguments: %w", err), 1)
	}

	jobs, err := prepareJobs(o)
	if err != nil {
		lg.Error("failed to read findings", "error", err)
		return errors.NewCommandError(o, err, 2)
	}

	results, err := batch.Run(ctx, jobs, config.SetThen(o.Threads, cfg.Batch.Parallel), normOpts, lg)
	if err != nil {
		lg.Error("diagnose command was interrupted", "error", err)
		return errors.NewCommandError(o, err, 2)
	}

	groups := batch.Merge(results)
	tool := sarif.ToolMetadata{Name: "soldiag", Version: &version.CoreVersion, InformationURI: toolInformationURI}
	if err := writeReport(stdout, format, groups, determineOutputPath(cfg, o), report.Options{Tool: tool, Logger: lg}); err != nil {
		lg.Error("failed to write report", "error", err)
		return errors.NewCommandError(o, err, 2)
	}

	failed := batch.Failed(results)
	for _, res := range failed {
		fmt.Fprintf(stderr, "cannot analyze this contract: %v\n", res.Err)
	}
	if len(failed) > 0 {
		return errors.NewCommandError(o, fmt.Errorf("%d of %d artifacts could not be analyzed", len(failed), len(results)), 2)
	}

	lg.Info("diagnose command completed successfully", "artifacts", len(results), "files", len(groups))
	return nil
}

// Initialize flags for the diagnose command.
func init() {
	DiagnoseCmd.Flags().StringArrayVarP(&diagnoseOptions.Artifacts, "artifact", "a", nil, "Path to a compiled contract artifact (solc combined JSON or Truffle). Repeat for several contracts.")
	DiagnoseCmd.Flags().StringArrayVarP(&diagnoseOptions.Findings, "findings", "i", nil, "Path to a MythX or Mythril JSON report. Give one for all artifacts or one per artifact.")
	DiagnoseCmd.Flags().StringVarP(&diagnoseOptions.Format, "format", "f", "", "Output format: json, sarif or table. Defaults to the configured output format.")
	DiagnoseCmd.Flags().StringVarP(&diagnoseOptions.OutputPath, "output", "o", "", "Path to the output file or directory. Defaults to stdout.")
	DiagnoseCmd.Flags().BoolVar(&diagnoseOptions.NoIgnore, "no-ignore", false, "Keep findings that point at public array getters.")
	DiagnoseCmd.Flags().BoolVar(&diagnoseOptions.Excerpt, "excerpt", false, "Include a marked source excerpt with every diagnostic.")
	DiagnoseCmd.Flags().BoolVar(&diagnoseOptions.Creation, "creation", false, "Resolve offsets against the creation bytecode instead of the deployed bytecode.")
	DiagnoseCmd.Flags().IntVarP(&diagnoseOptions.Threads, "threads", "j", 0, "Number of artifacts processed concurrently. Defaults to batch.parallel.")
	DiagnoseCmd.Flags().BoolP("help", "h", false, "Show help for the diagnose command.")
}
