package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daniel-olson-code/pipeline/pkg/blobstore"
	"github.com/daniel-olson-code/pipeline/pkg/dag"
	"github.com/daniel-olson-code/pipeline/pkg/stepstore"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel STEP_ID",
	Short: "Cancel a step and its whole connected component",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var resetCmd = &cobra.Command{
	Use:   "reset STEP_ID",
	Short: "Reset a step and its whole connected component to pending or queued",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func init() {
	cancelCmd.Flags().String("data-dir", "./data", "Data directory")
	resetCmd.Flags().String("data-dir", "./data", "Data directory")
}

func openEngine(dataDir string) (*dag.Engine, func(), error) {
	blobs, err := blobstore.Open(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	steps, err := stepstore.Open(dataDir)
	if err != nil {
		blobs.Close()
		return nil, nil, fmt.Errorf("open step store: %w", err)
	}
	closeAll := func() {
		steps.Close()
		blobs.Close()
	}
	return dag.New(steps, blobs, nil), closeAll, nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	engine, closeAll, err := openEngine(dataDir)
	if err != nil {
		return err
	}
	defer closeAll()

	if err := engine.Cancel(args[0]); err != nil {
		return fmt.Errorf("cancel %s: %w", args[0], err)
	}
	fmt.Printf("cancelled %s\n", args[0])
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	engine, closeAll, err := openEngine(dataDir)
	if err != nil {
		return err
	}
	defer closeAll()

	if err := engine.Reset(args[0]); err != nil {
		return fmt.Errorf("reset %s: %w", args[0], err)
	}
	fmt.Printf("reset %s\n", args[0])
	return nil
}
