package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/errclass"
)

var (
	doctorStrict bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check store health",
	Long: `Check store health.

Runs diagnostic checks on the store file, backups, audit trail and leftover
temp files, and reports any issues. Use --strict to validate every entry
against the write schema as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.Doctor(doctorStrict)
		if err != nil {
			return fmt.Errorf("doctor: %w", err)
		}

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else if len(result.Findings) == 0 {
			fmt.Println(color.Success("Store is healthy."))
		} else {
			fmt.Printf("Findings (%d):\n", len(result.Findings))
			for _, f := range result.Findings {
				fmt.Printf("  [%s] %s: %s\n", f.Severity, f.Category, f.Description)
			}
		}

		if !result.Healthy {
			return errclass.ErrCorruption.WithMessage("store is unhealthy")
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "validate every entry against the schema")
	rootCmd.AddCommand(doctorCmd)
}
