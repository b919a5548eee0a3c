package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/errclass"
)

var (
	jsonOutput bool
	configPath string
	storeDir   string
	logLevel   string
	noColor    bool
	rootCmd    = newRootCmd()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memcore",
		Short: "memcore - durable memory store for agents",
		Long: `memcore keeps an append-mostly log of timestamped structured entries
in a single JSON file. It validates writes, recovers from corrupted content,
and keeps labeled backups that can be listed and restored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
		},
	}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <dir>/config.yaml)")
	cmd.PersistentFlags().StringVarP(&storeDir, "dir", "d", "", "store directory (overrides store.dir)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error, fatal")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmtErr("%v", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error class to a process exit status.
func exitCode(err error) int {
	switch errclass.Code(err) {
	case errclass.ErrValidation.Code, errclass.ErrDuplicateID.Code:
		return 2
	case errclass.ErrNotFound.Code:
		return 3
	case errclass.ErrCorruption.Code, errclass.ErrParse.Code:
		return 4
	}
	return 1
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "memcore: "
	if color.Enabled() {
		prefix = color.Error("memcore:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
