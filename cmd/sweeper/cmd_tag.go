package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/sweeper/types"
)

var tagLive bool

// tagCmd applies preservation tags without deleting anything
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Tag every preserved resource with the reason it survives",
	Long: `Scan, classify, and stamp decom:preserve=true plus decom:reason onto
every resource the policy preserves. Nothing is deleted.

Tagging is idempotent: resources that already carry the preserve tag
are left untouched, so re-runs are safe.`,
	Example: `  sweeper tag            # Show what would be tagged
  sweeper tag --live     # Actually write the tags`,
	RunE: runTagCmd,
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().BoolVar(&tagLive, "live", false, "Write tags (default is dry-run)")
}

func runTagCmd(cmd *cobra.Command, args []string) error {
	e, _, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx := context.Background()
	result, err := e.Scan(ctx)
	if err != nil {
		return err
	}

	mode := types.ModeDryRun
	if tagLive {
		mode = types.ModeLive
	}

	verdicts := e.Classify(result.Resources)
	ops := e.Tag(ctx, result.Resources, verdicts, mode)

	counts := map[types.Outcome]int{}
	for _, op := range ops {
		counts[op.Outcome]++
		if op.Outcome == types.OutcomeSkipped {
			fmt.Printf("skipped: %s (%s)\n", op.ResourceID, op.Detail)
		}
	}

	fmt.Printf("tag (%s): %d tagged, %d already tagged, %d skipped\n",
		mode, counts[types.OutcomeSuccess], counts[types.OutcomeAlreadySatisfied], counts[types.OutcomeSkipped])

	if counts[types.OutcomeFailed] > 0 {
		return fmt.Errorf("%d tag operation(s) failed: %w", counts[types.OutcomeFailed], errOperationsFailed)
	}
	return nil
}
