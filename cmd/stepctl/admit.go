package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daniel-olson-code/pipeline/pkg/admitter"
	"github.com/daniel-olson-code/pipeline/pkg/blobstore"
	"github.com/daniel-olson-code/pipeline/pkg/stepstore"
)

var admitCmd = &cobra.Command{
	Use:   "admit FILE",
	Short: "Admit a JSON bundle of step definitions",
	Long: `admit reads a JSON bundle (a map of step id to definition, plus the
starting step ids) and writes its definitions into the blob store and its
step records into the step store. The step records are committed in one
transaction, so either all of them appear or none do. A step id already
present in the store rejects the whole bundle.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdmit,
}

func init() {
	admitCmd.Flags().String("data-dir", "./data", "Data directory")
}

func runAdmit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	bundle, err := admitter.LoadBundle(f)
	if err != nil {
		return fmt.Errorf("parse bundle: %w", err)
	}

	blobs, err := blobstore.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer blobs.Close()

	steps, err := stepstore.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open step store: %w", err)
	}
	defer steps.Close()

	admit := admitter.New(steps, blobs, nil)
	if err := admit.Admit(bundle); err != nil {
		return fmt.Errorf("admit bundle: %w", err)
	}

	fmt.Printf("admitted %d steps (%d starters)\n", len(bundle.Steps), len(bundle.Starters))
	return nil
}
