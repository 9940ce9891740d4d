package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/sweeper/results"
	"github.com/yairfalse/sweeper/types"
)

var (
	reportRun    string
	reportOutput string
)

// reportCmd reads back recorded runs; it never touches the cloud
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize recorded runs",
	Long: `List recorded runs, or replay one run's results from the local log.

Reports are built entirely from the append-only run logs, so they work
even after the estate itself is gone.`,
	Example: `  sweeper report                        # List recorded runs
  sweeper report --run 20260823-141502  # Summarize one run
  sweeper report --run 20260823-141502 -o json`,
	RunE: runReportCmd,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportRun, "run", "", "Run ID to report on (default: list runs)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "table", "Output format: table, json")
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if reportRun == "" {
		return listRunsReport(cfg.DataDir)
	}
	return singleRunReport(cfg.DataDir, reportRun)
}

func listRunsReport(dataDir string) error {
	runs, err := results.ListRuns(dataDir)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	if reportOutput == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tOPERATIONS\tFAILED\tACCOUNTS")
	for _, runID := range runs {
		record, err := results.Summarize(dataDir, runID, types.ModeDryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", runID, err)
			continue
		}
		total := 0
		for _, n := range record.Counts {
			total += n
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n",
			runID, total, record.Counts[types.OutcomeFailed], len(record.AccountScope))
	}
	return w.Flush()
}

func singleRunReport(dataDir, runID string) error {
	record, err := results.Summarize(dataDir, runID, types.ModeDryRun)
	if err != nil {
		return fmt.Errorf("failed to summarize run %s: %w", runID, err)
	}

	switch reportOutput {
	case "json":
		type fullReport struct {
			Record  *types.RunRecord `json:"record"`
			Entries []results.Entry  `json:"entries"`
		}
		report := fullReport{Record: record}
		err := results.Replay(dataDir, runID, func(entry *results.Entry) error {
			report.Entries = append(report.Entries, *entry)
			return nil
		})
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tOPERATION\tOUTCOME\tRESOURCE\tDETAIL")
		err := results.Replay(dataDir, runID, func(entry *results.Entry) error {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				entry.Sequence, entry.Result.Op, entry.Result.Outcome, entry.Result.ResourceID, entry.Result.Detail)
			return nil
		})
		if err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%s\n", record.String())
	default:
		return fmt.Errorf("invalid output format: %s (must be table or json)", reportOutput)
	}

	if record.Failed() {
		return fmt.Errorf("%d operation(s) failed: %w", record.Counts[types.OutcomeFailed], errOperationsFailed)
	}
	return nil
}
