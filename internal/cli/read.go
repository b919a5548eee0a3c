package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/memcore"
	"github.com/asecn/memcore/pkg/model"
)

var readStrict bool

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print every entry in insertion order",
	Long: `Print every entry in insertion order.

A missing store is initialized empty. Corrupted content is quarantined into
the backups directory and the store is reset, unless --strict is set, in
which case the command fails and leaves the file untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := commandContext()
		defer cancel()

		entries, err := client.Read(ctx, memcore.ReadOptions{Strict: readStrict})
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(entries)
		}
		return printEntries(entries)
	},
}

// printEntries prints one line per entry: timestamp, source, then the
// entry as canonical JSON.
func printEntries(entries []model.Entry) error {
	if len(entries) == 0 {
		fmt.Println("No entries.")
		return nil
	}
	for _, e := range entries {
		line, err := jsonutil.CanonicalMarshal(map[string]any(e))
		if err != nil {
			return fmt.Errorf("format entry: %w", err)
		}
		source := e.Source()
		if source == "" {
			source = "-"
		}
		fmt.Printf("%s  %s  %s\n", color.Info(e.Timestamp()), color.Tag(source), line)
	}
	return nil
}

func init() {
	readCmd.Flags().BoolVar(&readStrict, "strict", false, "fail on corrupted content instead of recovering")
	rootCmd.AddCommand(readCmd)
}
