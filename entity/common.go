package entity

// Metrics provided by the dispatcher of its operations, accumulated over all invocations
// handled by the same process. Accessible with ksprep.Preprocessor.Metrics().
type Metrics struct {

	// Total number of invocation batches dispatched
	Batches int64

	// Total number of input records processed, regardless of outcome
	RecordsProcessed int64

	// Total number of input records reported as Ok
	RecordsSucceeded int64

	// Total number of input records reported as ProcessingFailed
	RecordsFailed int64

	// Total number of sub-records extracted from de-aggregated input records
	SubRecords int64

	// Total number of sub-records where at least one field was normalized
	SubRecordsNormalized int64

	// Total number of sub-records kept as-is due to parse or normalization errors
	SubRecordErrors int64

	// Total amount of decoded input data (before de-aggregation)
	BytesProcessed int64

	// Total amount of output data produced for successful records (before base64 encoding)
	BytesOutput int64

	// Total time spent dispatching batches
	ProcessingTimeMicros int64
}

func (m *Metrics) Reset() {
	*m = Metrics{}
}

// TransformStats is reported by the transformer for each input record, and used by the
// dispatcher to update the cumulative Metrics.
type TransformStats struct {
	SubRecords           int
	SubRecordsNormalized int
	SubRecordErrors      int
	BytesIn              int
	BytesOut             int
}

// DefaultNormalizeFields are the sub-record fields converted from a list of key/value
// pairs into a map, unless configured otherwise.
var DefaultNormalizeFields = []string{"revenue", "requestDetails"}
