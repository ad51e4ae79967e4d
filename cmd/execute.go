package cmd

import (
	"context"
	"os"
)

// Execute runs the root command with the process's standard streams.
func Execute(ctx context.Context) error {
	root := NewRootCommand(os.Stdout, os.Stderr)
	return root.ExecuteContext(ctx)
}
