package main

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zpiroux/ksprep/internal/pkg/kpl"
)

func NewDeaggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deaggregate <base64 data>",
		Short: "Print the sub-records of a base64 encoded (possibly KPL aggregated) payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("decoding payload: %w", err)
			}
			records, err := kpl.Unpack(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "aggregated: %v, sub-records: %d\n", kpl.IsAggregated(data), len(records))
			for i, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d [%s] %s\n", i, r.PartitionKey, r.Data)
			}
			return nil
		},
	}
}
