package entity

import (
	"fmt"
)

// Result is the per-record verdict string returned to the invoking platform.
// The two literal values are part of the wire contract.
type Result string

const (
	ResultOk               Result = "Ok"
	ResultProcessingFailed Result = "ProcessingFailed"
)

// InputRecord is a single (possibly KPL-aggregated) record as received from the platform.
// Data is kept in its original base64 text form, so that a failed record can be returned
// byte-for-byte as received.
type InputRecord struct {
	RecordId string `json:"recordId"`
	Data     string `json:"data"`

	// Kinesis metadata provided by the platform, not used for processing.
	KinesisStreamRecordMetadata *KinesisRecordMetadata `json:"kinesisStreamRecordMetadata,omitempty"`
}

type KinesisRecordMetadata struct {
	SequenceNumber              string `json:"sequenceNumber,omitempty"`
	PartitionKey                string `json:"partitionKey,omitempty"`
	ShardId                     string `json:"shardId,omitempty"`
	ApproximateArrivalTimestamp int64  `json:"approximateArrivalTimestamp,omitempty"`
}

// OutcomeRecord is the result of transforming a single InputRecord.
// On success Data holds the base64 encoded concatenation of all (normalized) sub-records,
// on failure it holds the unmodified Data of the corresponding InputRecord.
type OutcomeRecord struct {
	RecordId string `json:"recordId"`
	Result   Result `json:"result"`
	Data     string `json:"data"`
}

func (o OutcomeRecord) Ok() bool {
	return o.Result == ResultOk
}

func (o OutcomeRecord) String() string {
	return fmt.Sprintf("recordId: %s, result: %s, data: %s", o.RecordId, o.Result, o.Data)
}

// BatchResult holds the outcomes of a full invocation batch, in the same order as the input,
// together with the batch level counters.
type BatchResult struct {
	Outcomes     []OutcomeRecord
	SuccessCount int
	FailureCount int
}

// Event is the invocation envelope sent by the platform.
type Event struct {
	InvocationId   string        `json:"invocationId,omitempty"`
	ApplicationArn string        `json:"applicationArn,omitempty"`
	StreamArn      string        `json:"streamArn,omitempty"`
	Records        []InputRecord `json:"records"`
}

// Response is the envelope returned to the platform.
type Response struct {
	Records []OutcomeRecord `json:"records"`
}
