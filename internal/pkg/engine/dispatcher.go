package engine

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/zpiroux/ksprep/entity"
	"github.com/zpiroux/ksprep/pkg/notify"
	"golang.org/x/sync/errgroup"
)

// RecordTransformer transforms a single input record into its outcome. Implementations must
// never panic past their own boundary and must be safe for concurrent use if the Dispatcher
// is configured with more than one worker.
type RecordTransformer interface {
	Transform(ctx context.Context, record entity.InputRecord) (entity.OutcomeRecord, entity.TransformStats)
}

// Dispatcher runs each record of an invocation batch through the transformer and assembles
// the batch result. It does no retries and never reorders the output.
type Dispatcher struct {
	config      Config
	transformer RecordTransformer
	notifier    *notify.Notifier
	metrics     ProcessingMetrics
}

// Cumulative processing metrics, accessed atomically.
type ProcessingMetrics struct {
	Batches              int64
	Records              int64
	RecordsSucceeded     int64
	RecordsFailed        int64
	SubRecords           int64
	SubRecordsNormalized int64
	SubRecordErrors      int64
	BytesIn              int64
	BytesOut             int64
	DurationMicros       int64
}

func (p *ProcessingMetrics) String() string {
	out, _ := json.Marshal(p.snapshot())
	return string(out)
}

func (p *ProcessingMetrics) snapshot() ProcessingMetrics {
	return ProcessingMetrics{
		Batches:              atomic.LoadInt64(&p.Batches),
		Records:              atomic.LoadInt64(&p.Records),
		RecordsSucceeded:     atomic.LoadInt64(&p.RecordsSucceeded),
		RecordsFailed:        atomic.LoadInt64(&p.RecordsFailed),
		SubRecords:           atomic.LoadInt64(&p.SubRecords),
		SubRecordsNormalized: atomic.LoadInt64(&p.SubRecordsNormalized),
		SubRecordErrors:      atomic.LoadInt64(&p.SubRecordErrors),
		BytesIn:              atomic.LoadInt64(&p.BytesIn),
		BytesOut:             atomic.LoadInt64(&p.BytesOut),
		DurationMicros:       atomic.LoadInt64(&p.DurationMicros),
	}
}

func NewDispatcher(config Config, transformer RecordTransformer, notifier *notify.Notifier) *Dispatcher {
	if notifier == nil {
		notifier = notify.New(nil, nil, 2, "dispatcher", "")
	}
	return &Dispatcher{
		config:      config,
		transformer: transformer,
		notifier:    notifier,
	}
}

// Dispatch transforms all records and returns their outcomes in input order, together with
// the success and failure counts. A summary line is notified at INFO level for each call.
// The invocationId is used as notifier instance for all notifications concerning this batch.
func (d *Dispatcher) Dispatch(ctx context.Context, invocationId string, records []entity.InputRecord) entity.BatchResult {

	startTime := time.Now().UnixMicro()
	notifier := d.notifier.WithInstance(invocationId)

	outcomes := make([]entity.OutcomeRecord, len(records))
	stats := make([]entity.TransformStats, len(records))

	if d.config.Workers > 1 && len(records) > 1 {
		var g errgroup.Group
		g.SetLimit(d.config.Workers)
		for i := range records {
			g.Go(func() error {
				outcomes[i], stats[i] = d.transformer.Transform(ctx, records[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, record := range records {
			outcomes[i], stats[i] = d.transformer.Transform(ctx, record)
		}
	}

	result := entity.BatchResult{Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.Ok() {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}

	d.updateMetrics(result, stats, startTime)
	notifier.Notify(entity.NotifyLevelInfo, "Processing completed. Successful records: %d, Failed records: %d.", result.SuccessCount, result.FailureCount)
	return result
}

func (d *Dispatcher) updateMetrics(result entity.BatchResult, stats []entity.TransformStats, startTime int64) {
	atomic.AddInt64(&d.metrics.Batches, 1)
	atomic.AddInt64(&d.metrics.Records, int64(len(result.Outcomes)))
	atomic.AddInt64(&d.metrics.RecordsSucceeded, int64(result.SuccessCount))
	atomic.AddInt64(&d.metrics.RecordsFailed, int64(result.FailureCount))
	for _, s := range stats {
		atomic.AddInt64(&d.metrics.SubRecords, int64(s.SubRecords))
		atomic.AddInt64(&d.metrics.SubRecordsNormalized, int64(s.SubRecordsNormalized))
		atomic.AddInt64(&d.metrics.SubRecordErrors, int64(s.SubRecordErrors))
		atomic.AddInt64(&d.metrics.BytesIn, int64(s.BytesIn))
		atomic.AddInt64(&d.metrics.BytesOut, int64(s.BytesOut))
	}
	atomic.AddInt64(&d.metrics.DurationMicros, time.Now().UnixMicro()-startTime)
}

func (d *Dispatcher) Metrics() entity.Metrics {
	m := d.metrics.snapshot()
	return entity.Metrics{
		Batches:              m.Batches,
		RecordsProcessed:     m.Records,
		RecordsSucceeded:     m.RecordsSucceeded,
		RecordsFailed:        m.RecordsFailed,
		SubRecords:           m.SubRecords,
		SubRecordsNormalized: m.SubRecordsNormalized,
		SubRecordErrors:      m.SubRecordErrors,
		BytesProcessed:       m.BytesIn,
		BytesOutput:          m.BytesOut,
		ProcessingTimeMicros: m.DurationMicros,
	}
}

// MetricsSummary returns the cumulative metrics in JSON format, for logging purposes.
func (d *Dispatcher) MetricsSummary() string {
	return d.metrics.String()
}
