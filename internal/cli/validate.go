package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/internal/schema"
	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/jsonutil"
)

var (
	validateSchema string
	validateList   bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [json|-]",
	Short: "Check a JSON value against a schema",
	Long: `Check a JSON value against a schema without writing anything.

The value is given as the argument, or read from stdin when the argument is
"-" or omitted. --schema names a built-in schema or a YAML/JSON schema file;
without it the store's write schema is used.

Examples:
  memcore validate '{"timestamp":"2024-02-19T00:00:00Z","source":"x"}'
  memcore validate --schema ethereum-transaction < tx.json
  memcore validate --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateList {
			names := schema.BuiltinNames()
			if jsonOutput {
				return outputJSON(names)
			}
			fmt.Println(strings.Join(names, "\n"))
			return nil
		}

		data, err := readInputArg(args)
		if err != nil {
			return err
		}
		value, err := jsonutil.Decode(data)
		if err != nil {
			return errclass.ErrParse.Wrap(err, "decode value")
		}

		var result schema.Result
		if validateSchema != "" {
			sch, err := schema.LoadOrBuiltin(validateSchema)
			if err != nil {
				return err
			}
			result = schema.Validate(value, sch)
		} else {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()
			obj, _ := value.(map[string]any)
			if obj == nil {
				result = schema.Result{Errors: []string{"value must be a JSON object"}}
			} else {
				result = client.Validate(obj)
			}
		}

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else if result.OK {
			fmt.Println(color.Success("valid"))
		} else {
			fmt.Println(color.Warning("invalid"))
			for _, e := range result.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
		if !result.OK {
			return errclass.ErrValidation.WithMessagef("%d validation error(s)", len(result.Errors))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "built-in schema name or schema file")
	validateCmd.Flags().BoolVar(&validateList, "list", false, "list built-in schemas")
	rootCmd.AddCommand(validateCmd)
}
