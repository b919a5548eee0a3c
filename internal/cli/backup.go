package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/color"
)

var backupCmd = &cobra.Command{
	Use:   "backup <command>",
	Short: "Manage store backups",
	Long: `Manage store backups kept in the backups directory.

Available commands:
  create [label]  - Snapshot the store
  list            - List backups, newest first`,
	DisableFlagsInUseLine: true,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [label]",
	Short: "Snapshot the store",
	Long: `Snapshot the store into the backups directory.

Without a label the backup is named backup-<unix-millis>. A label that
already names a backup is rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := ""
		if len(args) > 0 {
			label = args[0]
		}

		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := commandContext()
		defer cancel()

		meta, err := client.CreateBackup(ctx, label)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(meta)
		}
		fmt.Printf("Created backup %s (%d entries)\n", color.BackupName(meta.Name), meta.EntryCount)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := commandContext()
		defer cancel()

		list, err := client.ListBackups(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No backups.")
			return nil
		}
		fmt.Println(color.Header(fmt.Sprintf("%-40s %-12s %8s  %s", "NAME", "KIND", "ENTRIES", "CREATED")))
		for _, b := range list {
			fmt.Printf("%-40s %-12s %8d  %s\n", b.Name, b.Kind, b.EntryCount,
				b.Created.UTC().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	rootCmd.AddCommand(backupCmd)
}
