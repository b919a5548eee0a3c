package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/memcore"
)

var restoreNoBackup bool

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-name>",
	Short: "Replace the store with a backup",
	Long: `Replace the store with a backup.

The backup is validated before the store is touched. The current content is
saved as a pre-restore backup first unless --no-backup is set. The name may
be given with or without the .json suffix.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := commandContext()
		defer cancel()

		result, err := client.RestoreFromBackup(ctx, args[0], memcore.RestoreOptions{NoBackup: restoreNoBackup})
		if jsonOutput {
			if jerr := outputJSON(result); jerr != nil {
				return jerr
			}
			return err
		}
		if errors.Is(err, errclass.ErrNotFound) {
			return fmt.Errorf("%w\n%s", err, color.Dim("  "+suggestBackups(ctx, client, args[0])))
		}
		if err != nil {
			return err
		}

		fmt.Println(color.Success(result.Message))
		fmt.Printf("  Entries: %d\n", result.EntriesCount)
		if result.Backup != nil {
			fmt.Printf("  Previous state saved as %s\n", color.BackupName(result.Backup.Name))
		}
		return nil
	},
}

// suggestBackups lists close matches for a backup name that was not found.
func suggestBackups(ctx context.Context, client *memcore.Client, name string) string {
	list, err := client.ListBackups(ctx)
	if err != nil {
		return fmt.Sprintf("Run %s to see available backups.", color.Info("memcore backup list"))
	}
	if len(list) == 0 {
		return "No backups exist yet."
	}

	names := make([]string, len(list))
	for i, b := range list {
		names[i] = b.Name
	}
	if matches := closeMatches(name, names); len(matches) > 0 {
		for i, m := range matches {
			matches[i] = color.BackupName(m)
		}
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, joinNames(matches))
	}
	return fmt.Sprintf("Run %s to see available backups.", color.Info("memcore backup list"))
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreNoBackup, "no-backup", false, "skip the pre-restore backup")
	rootCmd.AddCommand(restoreCmd)
}
