package ksprep

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/zpiroux/ksprep/entity"
	"github.com/zpiroux/ksprep/entity/transform"
	"github.com/zpiroux/ksprep/internal/pkg/engine"
	"github.com/zpiroux/ksprep/internal/pkg/kpl"
)

const (
	envPrefix      = "KSPREP"
	defaultWorkers = 1
)

// Config needs to be created with NewConfig() or LoadConfig() and filled in with config as
// applicable for the intended setup, and provided in the call to ksprep.New().
// All config fields are optional. See individual struct types for documentation.
type Config struct {
	Transform TransformConfig
	Dispatch  DispatchConfig
	Ops       OpsConfig
	Hooks     HookConfig

	// The de-aggregator defaults to the KPL one and can be replaced with
	// Config.RegisterDeaggregator().
	deaggregator transform.Deaggregator
}

// TransformConfig specifies which sub-record fields to normalize.
type TransformConfig struct {

	// NormalizeFields are the top-level sub-record fields converted from a list of
	// {"key": ..., "value": ...} objects into a map. If empty, entity.DefaultNormalizeFields
	// ("revenue" and "requestDetails") are used.
	NormalizeFields []string
}

// DispatchConfig specifies how records in a batch are scheduled.
type DispatchConfig struct {

	// Number of records transformed concurrently. Values of 0 or 1 gives strictly sequential
	// processing. Output order is always the same as input order.
	Workers int
}

// OpsConfig provide options for observability.
type OpsConfig struct {

	// Size of the notification channel buffer. If 0 no notification channel is created.
	NotifyChanSize int

	// If set to true native logging will be used (debug, info, warn, and error logs). Default true.
	// If set to false no standard logging will be done, but the same type of
	// information will be provided on the notification channel, if enabled.
	Log bool

	// If set to true, and LOG_LEVEL is DEBUG, each sub-record is logged before and after
	// normalization.
	LogEventData bool
}

// HookConfig enables a client to inject custom logic to the sub-record processing, such as
// enrichment and filtering.
type HookConfig struct {
	PreTransformHookFunc entity.PreTransformHookFunc
}

// NewConfig returns an initialized Config struct with default values, required for ksprep.New().
// Native logging is enabled, so each invocation's summary line is logged unless Ops.Log is
// set to false.
func NewConfig() *Config {
	return &Config{
		Transform:    TransformConfig{NormalizeFields: append([]string{}, entity.DefaultNormalizeFields...)},
		Dispatch:     DispatchConfig{Workers: defaultWorkers},
		Ops:          OpsConfig{Log: true},
		deaggregator: kpl.NewDeaggregator(),
	}
}

// LoadConfig returns a Config with default values overridden by the following
// environment variables, if set:
//
//	KSPREP_LOG                (bool, default true)
//	KSPREP_LOG_EVENT_DATA     (bool, default false)
//	KSPREP_NOTIFY_CHAN_SIZE   (int, default 0)
//	KSPREP_WORKERS            (int, default 1)
//	KSPREP_NORMALIZE_FIELDS   (comma separated field names, default "revenue,requestDetails")
//
// The minimum log level is set with LOG_LEVEL, see package notify.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("log", true)
	v.SetDefault("log_event_data", false)
	v.SetDefault("notify_chan_size", 0)
	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("normalize_fields", strings.Join(entity.DefaultNormalizeFields, ","))

	c := NewConfig()
	c.Ops.Log = v.GetBool("log")
	c.Ops.LogEventData = v.GetBool("log_event_data")
	c.Ops.NotifyChanSize = v.GetInt("notify_chan_size")
	c.Dispatch.Workers = v.GetInt("workers")
	c.Transform.NormalizeFields = splitFields(v.GetString("normalize_fields"))

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// RegisterDeaggregator replaces the default KPL de-aggregator, e.g. for sources not using
// KPL aggregation. This can only be done prior to creating the Preprocessor with ksprep.New().
func (c *Config) RegisterDeaggregator(d transform.Deaggregator) error {
	if d == nil {
		return ErrInvalidConfig
	}
	c.deaggregator = d
	return nil
}

func (c *Config) validate() error {
	if c.Dispatch.Workers < 0 {
		return fmt.Errorf("%w, negative number of workers: %d", ErrInvalidConfig, c.Dispatch.Workers)
	}
	if c.Ops.NotifyChanSize < 0 {
		return fmt.Errorf("%w, negative notify channel size: %d", ErrInvalidConfig, c.Ops.NotifyChanSize)
	}
	seen := make(map[string]bool)
	for _, field := range c.Transform.NormalizeFields {
		if field == "" {
			return fmt.Errorf("%w, empty normalize field name", ErrInvalidConfig)
		}
		if seen[field] {
			return fmt.Errorf("%w, duplicate normalize field name: %s", ErrInvalidConfig, field)
		}
		seen[field] = true
	}
	return nil
}

func splitFields(s string) []string {
	var fields []string
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

func preProcessConfig(config *Config) (transform.Config, engine.Config) {

	// Convert external config to internal
	var (
		tc transform.Config
		ec engine.Config
	)
	tc.NormalizeFields = config.Transform.NormalizeFields
	tc.PreTransformHookFunc = config.Hooks.PreTransformHookFunc
	tc.LogEventData = config.Ops.LogEventData
	ec.Workers = config.Dispatch.Workers

	return tc, ec
}
