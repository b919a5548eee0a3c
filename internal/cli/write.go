package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/memcore"
	"github.com/asecn/memcore/pkg/model"
)

var (
	writeSource         string
	writeID             string
	writeTags           []string
	writeSkipValidation bool
	writeOverwrite      bool
)

var writeCmd = &cobra.Command{
	Use:   "write [entry-json|-]",
	Short: "Append an entry to the store",
	Long: `Append an entry to the store.

The entry is a JSON object given as the argument, or read from stdin when the
argument is "-" or omitted. A missing timestamp is filled with the current
time. --source, --id and --tag set the matching reserved keys.

Examples:
  memcore write '{"source":"trigger","data":{"price":42}}'
  echo '{"data":{}}' | memcore write --source action --tag system`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := readEntryArg(args)
		if err != nil {
			return err
		}
		if writeSource != "" {
			entry[model.FieldSource] = writeSource
		}
		if writeID != "" {
			entry[model.FieldID] = writeID
		}
		if len(writeTags) > 0 {
			tags := make([]any, len(writeTags))
			for i, t := range writeTags {
				tags[i] = t
			}
			entry[model.FieldTags] = tags
		}

		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := commandContext()
		defer cancel()

		written, err := client.Write(ctx, entry, memcore.WriteOptions{
			SkipValidation: writeSkipValidation,
			AllowOverwrite: writeOverwrite,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(written)
		}
		fmt.Printf("Wrote entry at %s\n", color.Info(written.Timestamp()))
		return nil
	},
}

// readEntryArg decodes the entry from args[0], or from stdin.
func readEntryArg(args []string) (model.Entry, error) {
	data, err := readInputArg(args)
	if err != nil {
		return nil, err
	}
	entry, err := model.EntryFromJSON(data)
	if err != nil {
		return nil, errclass.ErrParse.Wrap(err, "invalid entry")
	}
	return entry, nil
}

// readInputArg returns args[0], or all of stdin when the argument is "-" or
// absent.
func readInputArg(args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

func init() {
	writeCmd.Flags().StringVar(&writeSource, "source", "", "set the entry source")
	writeCmd.Flags().StringVar(&writeID, "id", "", "set the entry id")
	writeCmd.Flags().StringSliceVar(&writeTags, "tag", nil, "add a tag (repeatable)")
	writeCmd.Flags().BoolVar(&writeSkipValidation, "skip-validation", false, "do not validate against the store schema")
	writeCmd.Flags().BoolVar(&writeOverwrite, "overwrite", false, "allow an id that already exists")
	rootCmd.AddCommand(writeCmd)
}
