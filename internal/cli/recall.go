package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/memcore"
)

var (
	recallWhere         []string
	recallQuery         string
	recallFields        []string
	recallCaseSensitive bool
	recallExact         bool
	recallSortBy        string
	recallAscending     bool
	recallUnsorted      bool
	recallLimit         int
)

var recallCmd = &cobra.Command{
	Use:   "recall [text]",
	Short: "Search entries",
	Long: `Search entries, newest first.

A text argument matches entries whose JSON form contains the text, or only
the string fields named by --field. --where key=value builds a structured
query; the value is decoded as JSON when it parses, and taken as a string
otherwise. --query takes a whole structured query as a JSON object.
Without a query every entry is returned.

Examples:
  memcore recall alpha
  memcore recall --where source=trigger --limit 5
  memcore recall --where 'tags=["system"]'
  memcore recall --query '{"data":{"kind":"tx"}}' --exact`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := recallInput(args)
		if err != nil {
			return err
		}

		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := commandContext()
		defer cancel()

		entries, err := client.RecallRaw(ctx, raw,
			memcore.ParseOptions{
				CaseSensitive: recallCaseSensitive,
				Fields:        recallFields,
				ExactMatch:    recallExact,
			},
			memcore.RecallOptions{
				SortBy:    recallSortBy,
				Ascending: recallAscending,
				Unsorted:  recallUnsorted,
				Limit:     recallLimit,
			})
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(entries)
		}
		return printEntries(entries)
	},
}

// recallInput builds the untyped query from the positional text, --where
// pairs or --query. Only one form may be used.
func recallInput(args []string) (any, error) {
	forms := 0
	if len(args) > 0 {
		forms++
	}
	if len(recallWhere) > 0 {
		forms++
	}
	if recallQuery != "" {
		forms++
	}
	if forms > 1 {
		return nil, fmt.Errorf("use only one of text, --where or --query")
	}

	switch {
	case len(args) > 0:
		return args[0], nil
	case recallQuery != "":
		v, err := jsonutil.Decode([]byte(recallQuery))
		if err != nil {
			return nil, fmt.Errorf("parse --query: %w", err)
		}
		return v, nil
	case len(recallWhere) > 0:
		q := make(map[string]any, len(recallWhere))
		for _, pair := range recallWhere {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid --where %q, expected key=value", pair)
			}
			q[key] = whereValue(value)
		}
		return q, nil
	}
	return nil, nil
}

func whereValue(s string) any {
	if v, err := jsonutil.Decode([]byte(s)); err == nil {
		return v
	}
	return s
}

func init() {
	recallCmd.Flags().StringArrayVarP(&recallWhere, "where", "w", nil, "match field=value (repeatable)")
	recallCmd.Flags().StringVarP(&recallQuery, "query", "q", "", "structured query as a JSON object")
	recallCmd.Flags().StringSliceVar(&recallFields, "field", nil, "restrict text search to these fields")
	recallCmd.Flags().BoolVar(&recallCaseSensitive, "case-sensitive", false, "case-sensitive string matching")
	recallCmd.Flags().BoolVar(&recallExact, "exact", false, "compare structured query values by deep equality")
	recallCmd.Flags().StringVar(&recallSortBy, "sort-by", "", "sort field (default timestamp)")
	recallCmd.Flags().BoolVar(&recallAscending, "asc", false, "sort ascending")
	recallCmd.Flags().BoolVar(&recallUnsorted, "unsorted", false, "keep insertion order")
	recallCmd.Flags().IntVarP(&recallLimit, "limit", "n", 0, "maximum number of results")
	rootCmd.AddCommand(recallCmd)
}
