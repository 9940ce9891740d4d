package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/yairfalse/sweeper/types"
)

var (
	sweepLive  bool
	sweepForce bool
)

// sweepCmd runs the whole pipeline: scan, classify, tag, plan, delete
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the full decommissioning pipeline",
	Long: `Run the whole pipeline: discover the estate, classify every resource,
tag the survivors, and delete the rest in dependency order.

Dry-run by default: the full plan executes and every result is
recorded, but nothing in the cloud is touched. Pass --live to mutate.
Live sweeps ask for confirmation unless --force is set.

A failed delete never stops the run; it is recorded and the sweep
moves on. SIGINT/SIGTERM stop the run between deletes.`,
	Example: `  sweeper sweep                  # Dry run, full report
  sweeper sweep --live           # Delete, with confirmation
  sweeper sweep --live --force   # Delete without prompting`,
	RunE: runSweepCmd,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().BoolVar(&sweepLive, "live", false, "Actually delete (default is dry-run)")
	sweepCmd.Flags().BoolVar(&sweepForce, "force", false, "Skip the live-mode confirmation prompt")
}

func runSweepCmd(cmd *cobra.Command, args []string) error {
	mode := types.ModeDryRun
	if sweepLive {
		mode = types.ModeLive
		if !sweepForce && !confirmLiveSweep() {
			fmt.Println("aborted")
			return nil
		}
	}

	e, _, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var record *types.RunRecord

	var group run.Group
	group.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	group.Add(func() error {
		var sweepErr error
		record, sweepErr = e.Sweep(ctx, mode)
		return sweepErr
	}, func(error) {
		cancel()
	})

	err = group.Run()
	if err != nil {
		// A caught signal is a clean stop: the record still reports
		// what happened before and after the cancellation point.
		if _, caught := err.(run.SignalError); !caught || record == nil {
			return err
		}
	}
	if record == nil {
		return fmt.Errorf("run did not complete")
	}

	fmt.Println(record.String())

	if record.Failed() {
		return fmt.Errorf("%d operation(s) failed: %w", record.Counts[types.OutcomeFailed], errOperationsFailed)
	}
	return nil
}

// confirmLiveSweep requires the operator to type "sweep" before a live
// run proceeds.
func confirmLiveSweep() bool {
	fmt.Print("Live sweep will DELETE resources. Type 'sweep' to continue: ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(answer) == "sweep"
}
