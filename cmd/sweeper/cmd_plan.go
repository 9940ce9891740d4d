package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/sweeper/types"
)

var planVerbose bool

// planCmd shows what a sweep would do, without doing any of it
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the ordered deletion plan without executing it",
	Long: `Scan, classify, and print the deletion plan: what survives and why,
what gets deleted and in which order, what is folded into stack
deletes, and what is quarantined.

The plan is a pure function of the estate and the policy, so the same
estate always produces the same plan.`,
	Example: `  sweeper plan
  sweeper plan -v            # Include every preserved resource`,
	RunE: runPlanCmd,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().BoolVarP(&planVerbose, "verbose", "v", false, "List preserved resources too")
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	e, _, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	result, err := e.Scan(context.Background())
	if err != nil {
		return err
	}

	verdicts := e.Classify(result.Resources)
	plan, already := e.Plan(result.Resources, verdicts)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	if planVerbose {
		fmt.Fprintln(w, "PRESERVED\tREASON")
		for _, res := range result.Resources {
			if v := verdicts[res.ID]; v.Verdict == types.VerdictPreserve {
				fmt.Fprintf(w, "%s\t%s\n", res.ID, v.Reason)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "ORDER\tTIER\tRESOURCE\tREASON")
	order := 0
	tierNames := []string{"workloads", "data-stores", "network", "stacks"}
	for tierIdx, tier := range plan.Tiers {
		for _, res := range tier {
			order++
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", order, tierNames[tierIdx], res.ID, verdicts[res.ID].Reason)
		}
	}
	_ = w.Flush()

	for _, skip := range plan.Skipped {
		fmt.Printf("folded: %s (%s)\n", skip.Resource.ID, skip.Detail)
	}
	for _, q := range plan.Quarantined {
		fmt.Printf("quarantined: %s (%s)\n", q.Resource.ID, q.Detail)
	}
	for _, op := range already {
		fmt.Printf("already deleted: %s\n", op.ResourceID)
	}

	preserved := 0
	for _, v := range verdicts {
		if v.Verdict == types.VerdictPreserve {
			preserved++
		}
	}
	fmt.Printf("\nplan: %d to delete, %d preserved, %d folded, %d quarantined\n",
		plan.Total(), preserved, len(plan.Skipped), len(plan.Quarantined))

	if len(plan.Quarantined) > 0 {
		return fmt.Errorf("%d resource(s) quarantined: %w", len(plan.Quarantined), errOperationsFailed)
	}
	return nil
}
