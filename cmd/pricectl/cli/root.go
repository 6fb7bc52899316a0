// Package cli implements pricectl, an offline front end to the price engine
// plus a few job queue helpers.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCommand assembles the pricectl command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "pricectl",
		Short:         "Compute sell prices and drive pricedesk jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newComputeCommand(), newBatchCommand(), newJobsCommand())
	return root
}

// Execute runs pricectl with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "pricectl: %v\n", err)
		return 1
	}
	return 0
}
