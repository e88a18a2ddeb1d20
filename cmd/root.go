package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanfranblanco/vscode-solidity-sub001/cmd/diagnose"
	"github.com/juanfranblanco/vscode-solidity-sub001/cmd/version"
	"github.com/juanfranblanco/vscode-solidity-sub001/internal/config"
	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/shared/errors"
)

// ConfigEnv names a config file when --config is not given.
const ConfigEnv = "SOLDIAG_CONFIG"

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "soldiag [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "Soldiag maps smart contract analyzer findings onto Solidity sources.",
		Long: `Soldiag decodes compiler source maps and bytecode of Solidity build artifacts and turns
	MythX or Mythril findings into deduplicated, editor-ready diagnostics.
	`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults to $SOLDIAG_CONFIG, then built-in defaults)")
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(diagnose.DiagnoseCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		var cmdErr *errors.CommandError
		if stderrors.As(err, &cmdErr) {
			return cmdErr.ExitCode
		}
		return 1
	}
	return 0
}

func initConfig() error {
	var err error

	if cfgFile == "" {
		cfgFile = os.Getenv(ConfigEnv)
	}
	AppConfig, err = config.NewConfig(cfgFile)
	if err != nil {
		return errors.NewCommandError(cfgFile, fmt.Errorf("initializing config file function is crashed - %w", err), 1)
	}

	version.Init(AppConfig)
	diagnose.Init(AppConfig)
	return nil
}
