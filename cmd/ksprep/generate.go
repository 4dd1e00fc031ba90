package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zpiroux/ksprep/internal/pkg/eventsim"
)

func NewGenerateCmd() *cobra.Command {
	var spec eventsim.Spec

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic invocation event with pair list sub-records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := eventsim.New(spec)
			if err != nil {
				return fmt.Errorf("invalid generator settings: %w", err)
			}
			event, err := sim.Event()
			if err != nil {
				return err
			}
			out, err := json.Marshal(event)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&spec.Records, "records", "n", 10, "number of records in the event")
	f.IntVar(&spec.MinSubRecords, "min-sub-records", 1, "minimum sub-records per record")
	f.IntVar(&spec.MaxSubRecords, "max-sub-records", 1, "maximum sub-records per record, records with more than one are KPL aggregated")
	f.StringSliceVar(&spec.PairFields, "fields", nil, "pair list fields of each sub-record (default revenue,requestDetails)")
	f.IntVar(&spec.MinPairs, "min-pairs", 1, "minimum pairs per field")
	f.IntVar(&spec.MaxPairs, "max-pairs", 3, "maximum pairs per field")
	f.IntVar(&spec.Keys.Amount, "keys", 10, "number of distinct pair keys")
	f.StringVar(&spec.Keys.Prefix, "key-prefix", "key", "prefix of generated pair keys")
	f.IntVar(&spec.Keys.FrequencyMin, "key-frequency-min", 0, "minimum frequency weight of a pair key")
	f.IntVar(&spec.Keys.FrequencyMax, "key-frequency-max", 0, "maximum frequency weight of a pair key")
	f.Float64Var(&spec.MalformedRatio, "malformed-ratio", 0, "share of sub-records with a pair list that cannot be normalized")
	f.StringVarP(&spec.PartitionKey, "partition-key", "k", "eventsim", "partition key of aggregated sub-records")
	f.Int64Var(&spec.Seed, "seed", 0, "random seed, 0 seeds from the clock")
	return cmd
}
