package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zpiroux/ksprep/entity"
	"github.com/zpiroux/ksprep/internal/pkg/kpl"
)

func NewAggregateCmd() *cobra.Command {
	var (
		partitionKey string
		recordId     string
		asEvent      bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate [file]",
		Short: "Aggregate newline separated sub-records into a base64 KPL payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			input, err := readInput(cmd, name)
			if err != nil {
				return fmt.Errorf("reading sub-records: %w", err)
			}

			var records []kpl.UserRecord
			scanner := bufio.NewScanner(bytes.NewReader(input))
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := bytes.TrimSpace(scanner.Bytes())
				if len(line) == 0 {
					continue
				}
				records = append(records, kpl.UserRecord{PartitionKey: partitionKey, Data: append([]byte{}, line...)})
			}
			if err = scanner.Err(); err != nil {
				return err
			}

			aggregated, err := kpl.Aggregate(records)
			if err != nil {
				return err
			}
			data := base64.StdEncoding.EncodeToString(aggregated)

			if !asEvent {
				fmt.Fprintln(cmd.OutOrStdout(), data)
				return nil
			}
			event := entity.Event{Records: []entity.InputRecord{{RecordId: recordId, Data: data}}}
			out, err := json.Marshal(event)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&partitionKey, "partition-key", "k", "pk", "partition key of all sub-records")
	cmd.Flags().StringVar(&recordId, "record-id", "record-1", "record ID used with --event")
	cmd.Flags().BoolVar(&asEvent, "event", false, "print a full invocation event instead of the base64 payload")
	return cmd
}
