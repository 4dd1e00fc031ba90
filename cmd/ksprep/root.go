package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ksprep",
		Short:         "Kinesis analytics record preprocessor tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(NewProcessCmd(), NewAggregateCmd(), NewDeaggregateCmd(), NewGenerateCmd())
	return cmd
}

// readInput reads the named file, or stdin if name is empty or "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
