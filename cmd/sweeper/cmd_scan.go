package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/sweeper/types"
)

var scanOutput string

// scanCmd discovers the estate without classifying or mutating anything
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover every resource across accounts and regions",
	Long: `Scan the configured accounts and regions and record what exists.

Discovery is read-only. The inventory is persisted locally so later
plan and sweep runs can compare against it.`,
	Example: `  sweeper scan                          # Scan configured estate
  sweeper scan --profile dev-admin      # Scan one account
  sweeper scan --region eu-west-1 -o json`,
	RunE: runScanCmd,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "table", "Output format: table, json")
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	e, _, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	result, err := e.Scan(context.Background())
	if err != nil {
		return err
	}

	switch scanOutput {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result.Resources)
	case "table":
		printScanTable(result.Resources)
	default:
		return fmt.Errorf("invalid output format: %s (must be table or json)", scanOutput)
	}

	if len(result.Errors) > 0 {
		for _, scanErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "warning: %s/%s: %v\n", scanErr.Profile, scanErr.Region, scanErr.Err)
		}
		return fmt.Errorf("%d scan slice(s) failed: %w", len(result.Errors), errOperationsFailed)
	}
	return nil
}

func printScanTable(resources []types.Resource) {
	type key struct{ account, service string }
	counts := map[key]int{}
	for _, res := range resources {
		counts[key{res.Account, res.Service}]++
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].account != keys[j].account {
			return keys[i].account < keys[j].account
		}
		return keys[i].service < keys[j].service
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tSERVICE\tCOUNT")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\t%d\n", k.account, k.service, counts[k])
	}
	_ = w.Flush()
	fmt.Printf("\n%d resources discovered\n", len(resources))
}
