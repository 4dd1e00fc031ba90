// Package ksprep is a record preprocessor for Kinesis analytics applications. It takes
// invocation batches of (possibly KPL-aggregated) records, de-aggregates them and converts
// key/value pair lists in each sub-record into maps, reporting each record as Ok or
// ProcessingFailed so that the invoking platform can handle failures independently.
package ksprep

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/teltech/logger"
	"github.com/tidwall/sjson"
	"github.com/zpiroux/ksprep/entity"
	"github.com/zpiroux/ksprep/entity/transform"
	"github.com/zpiroux/ksprep/internal/pkg/engine"
	"github.com/zpiroux/ksprep/pkg/notify"
)

// Error values returned by the ksprep API.
// Error matching can be done with 'if errors.Is(err, ErrInvalidConfig)' etc. due to
// error wrapping.
var (
	ErrConfigNotInitialized       = errors.New("ksprep.Config need to be created with NewConfig() or LoadConfig()")
	ErrPreprocessorNotInitialized = errors.New("preprocessor not initialized")
	ErrInvalidConfig              = errors.New("invalid config")
)

type Preprocessor struct {
	config     *Config
	id         string
	dispatcher *engine.Dispatcher
	notifyChan entity.NotifyChan
	notifier   *notify.Notifier
}

// New creates a Preprocessor based on the provided config, which needs to be initially
// created with NewConfig() or LoadConfig().
func New(config *Config) (*Preprocessor, error) {
	if config == nil || config.deaggregator == nil {
		return nil, ErrConfigNotInitialized
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	p := &Preprocessor{
		config: config,
		id:     uuid.NewString(),
	}
	if config.Ops.NotifyChanSize > 0 {
		p.notifyChan = make(entity.NotifyChan, config.Ops.NotifyChanSize)
	}

	var log *logger.Log
	if config.Ops.Log {
		log = logger.New()
	}

	tc, ec := preProcessConfig(config)
	transformer := transform.NewTransformer(tc, config.deaggregator, notify.New(p.notifyChan, log, 2, "transformer", p.id))
	p.dispatcher = engine.NewDispatcher(ec, transformer, notify.New(p.notifyChan, log, 2, "dispatcher", p.id))
	p.notifier = notify.New(p.notifyChan, log, 2, "preprocessor", p.id)
	p.notifier.Notify(entity.NotifyLevelDebug, "Preprocessor created, normalizing fields: %v, workers: %d", tc.NormalizeFields, ec.Workers)
	return p, nil
}

// HandleRequest processes a full invocation event and returns the response to the platform.
// Record level errors are never returned as errors, but reported per record in the response.
// The signature is compatible with the AWS Lambda Go runtime.
func (p *Preprocessor) HandleRequest(ctx context.Context, event entity.Event) (entity.Response, error) {
	if p == nil || p.dispatcher == nil {
		return entity.Response{}, ErrPreprocessorNotInitialized
	}

	invocationId := event.InvocationId
	if invocationId == "" {
		invocationId = uuid.NewString()
	}

	result := p.dispatcher.Dispatch(ctx, invocationId, event.Records)
	return entity.Response{Records: result.Outcomes}, nil
}

// Process transforms the provided records and returns their outcomes, in the same order,
// together with the batch success and failure counts.
func (p *Preprocessor) Process(ctx context.Context, records []entity.InputRecord) (entity.BatchResult, error) {
	if p == nil || p.dispatcher == nil {
		return entity.BatchResult{}, ErrPreprocessorNotInitialized
	}
	return p.dispatcher.Dispatch(ctx, uuid.NewString(), records), nil
}

// Metrics returns processing metrics accumulated since the Preprocessor was created.
func (p *Preprocessor) Metrics() entity.Metrics {
	return p.dispatcher.Metrics()
}

// NotifyChannel returns the channel on which all notifications are sent, or nil if
// Config.Ops.NotifyChanSize was 0. The channel is never closed; events are dropped
// when it is full.
func (p *Preprocessor) NotifyChannel() entity.NotifyChan {
	return p.notifyChan
}

// Shutdown logs the accumulated metrics. The Preprocessor should not be used afterwards.
func (p *Preprocessor) Shutdown() {
	p.notifier.Notify(entity.NotifyLevelInfo, "Shutting down, metrics: %s", p.dispatcher.MetricsSummary())
}

// EnrichSubRecord is a convenience function that could be used for sub-record enrichment
// purposes inside a hook function as specified in ksprep.Config.Hooks.
// It's a wrapper on the sjson package. See doc at https://github.com/tidwall/sjson.
func EnrichSubRecord(subRecord []byte, path string, value any) ([]byte, error) {
	return sjson.SetBytes(subRecord, path, value)
}
