package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/memcore"
	"github.com/asecn/memcore/pkg/model"
)

var (
	purgeSoft         bool
	purgeNoBackup     bool
	purgeLabel        string
	purgePreserveTags []string
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Clear the store",
	Long: `Clear the store.

A pre-purge backup is written first unless --no-backup is set. With --soft,
entries carrying any preserved tag survive; the tags default to
purge.preserve_tags from the config.

Examples:
  memcore purge
  memcore purge --soft --preserve-tag system --preserve-tag pinned
  memcore purge --label before-reset`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := memcore.PurgeOptions{
			NoBackup:    purgeNoBackup,
			BackupLabel: purgeLabel,
			SoftPurge:   purgeSoft,
		}
		if cmd.Flags().Changed("preserve-tag") {
			opts.PreserveTags = append([]string{}, purgePreserveTags...)
		}

		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := commandContext()
		defer cancel()

		result, err := client.Purge(ctx, opts)
		if jsonOutput {
			if jerr := outputJSON(result); jerr != nil {
				return jerr
			}
			return err
		}
		if err != nil {
			return err
		}
		printPurgeResult(result)
		return nil
	},
}

func printPurgeResult(r *model.PurgeResult) {
	fmt.Println(color.Success(r.Message))
	fmt.Printf("  Entries removed: %d\n", r.EntriesAffected)
	if r.PreservedCount != nil {
		fmt.Printf("  Entries preserved: %d\n", *r.PreservedCount)
	}
	if r.Backup != nil {
		fmt.Printf("  Backup: %s\n", color.BackupName(r.Backup.Name))
	}
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeSoft, "soft", false, "keep entries with a preserved tag")
	purgeCmd.Flags().BoolVar(&purgeNoBackup, "no-backup", false, "skip the pre-purge backup")
	purgeCmd.Flags().StringVar(&purgeLabel, "label", "", "name for the pre-purge backup")
	purgeCmd.Flags().StringSliceVar(&purgePreserveTags, "preserve-tag", nil, "tag preserved by --soft (repeatable)")
	rootCmd.AddCommand(purgeCmd)
}
