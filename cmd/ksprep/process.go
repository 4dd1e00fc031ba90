package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zpiroux/ksprep"
	"github.com/zpiroux/ksprep/entity"
)

func NewProcessCmd() *cobra.Command {
	var (
		eventFile string
		workers   int
		fields    []string
		decode    bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run an invocation event through the preprocessor and print the response",
		Long: `Reads an invocation event ({"records":[{"recordId":...,"data":...}]}) from a file or stdin,
processes it exactly as the deployed function would, and prints the response JSON.

Configuration is read from KSPREP_* environment variables; flags override them.`,
		Example: `  ksprep aggregate --event events.jsonl | ksprep process --decode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, eventFile)
			if err != nil {
				return fmt.Errorf("reading event: %w", err)
			}
			var event entity.Event
			if err = json.Unmarshal(input, &event); err != nil {
				return fmt.Errorf("parsing event: %w", err)
			}

			config, err := ksprep.LoadConfig()
			if err != nil {
				return err
			}
			config.Ops.Log = false
			if cmd.Flags().Changed("workers") {
				config.Dispatch.Workers = workers
			}
			if cmd.Flags().Changed("fields") {
				config.Transform.NormalizeFields = fields
			}

			p, err := ksprep.New(config)
			if err != nil {
				return err
			}
			response, err := p.HandleRequest(cmd.Context(), event)
			if err != nil {
				return err
			}

			if decode {
				return printDecoded(cmd, response)
			}
			out, err := json.MarshalIndent(response, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&eventFile, "event", "e", "-", "invocation event JSON file, - for stdin")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "number of records processed concurrently")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "fields to normalize (default revenue,requestDetails)")
	cmd.Flags().BoolVar(&decode, "decode", false, "print decoded record data instead of the response JSON")
	return cmd
}

func printDecoded(cmd *cobra.Command, response entity.Response) error {
	succeeded, failed := 0, 0
	for _, record := range response.Records {
		if !record.Ok() {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (original data kept)\n", record.RecordId, record.Result)
			continue
		}
		succeeded++
		data, err := base64.StdEncoding.DecodeString(record.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", record.RecordId, record.Result, data)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Successful records: %d, Failed records: %d\n", succeeded, failed)
	return nil
}
