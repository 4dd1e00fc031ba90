package transform

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/zpiroux/ksprep/entity"
	"github.com/zpiroux/ksprep/pkg/notify"
)

var (
	ErrDecode             = errors.New("record data is not valid base64")
	ErrDeaggregation      = errors.New("record could not be de-aggregated")
	ErrInvalidSubRecord   = errors.New("sub-record is not valid JSON")
	ErrSubRecordNotObject = errors.New("sub-record is not a JSON object")
	ErrDuplicateField     = errors.New("sub-record has a repeated normalized field")
	ErrHookUnretryable    = errors.New("PreTransformHookFunc reported unretryable error")
	ErrHookInvalidAction  = errors.New("PreTransformHookFunc returned invalid action value")
)

// Deaggregator splits the decoded data of an input record into its sub-records, keeping
// their order. The default implementation is kpl.Deaggregator.
type Deaggregator interface {
	Deaggregate(data []byte) ([][]byte, error)
}

type Config struct {
	// NormalizeFields are the top-level sub-record fields converted from a list of key/value
	// pairs into a map, in the order given. Defaults to entity.DefaultNormalizeFields.
	NormalizeFields []string

	// PreTransformHookFunc is optional, see entity.PreTransformHookFunc.
	PreTransformHookFunc entity.PreTransformHookFunc

	// If true each sub-record is logged at DEBUG level before and after normalization.
	LogEventData bool
}

// Transformer is the default record transformer (stateless, immutable, safe for concurrent use).
// It decodes, de-aggregates and normalizes a single input record at a time, and never fails
// beyond its own boundary: all errors are reported as a ProcessingFailed outcome holding the
// original record data.
type Transformer struct {
	config       Config
	paths        []string
	deaggregator Deaggregator
	notifier     *notify.Notifier
}

func NewTransformer(config Config, deaggregator Deaggregator, notifier *notify.Notifier) *Transformer {
	if len(config.NormalizeFields) == 0 {
		config.NormalizeFields = entity.DefaultNormalizeFields
	}
	if notifier == nil {
		notifier = notify.New(nil, nil, 2, "transformer", "")
	}
	t := &Transformer{
		config:       config,
		deaggregator: deaggregator,
		notifier:     notifier,
	}
	for _, field := range config.NormalizeFields {
		t.paths = append(t.paths, escapePath(field))
	}
	return t
}

// Transform returns the outcome of transforming the provided record together with stats on the
// sub-records processed.
//
// Decode and de-aggregation errors fail the whole record. Sub-records which are not valid JSON
// objects, or have malformed key/value lists in any of the normalized fields, are kept unchanged
// in the output and do not fail the record.
func (t *Transformer) Transform(ctx context.Context, record entity.InputRecord) (outcome entity.OutcomeRecord, stats entity.TransformStats) {

	outcome = failedOutcome(record)

	// Protection against unexpected errors, e.g. from external hook logic
	defer func() {
		if r := recover(); r != nil {
			t.notifier.NotifyRecord(entity.NotifyLevelError, record.RecordId, "Panic (%v) while transforming record, reporting it as failed", r)
			outcome = failedOutcome(record)
		}
	}()

	data, err := base64.StdEncoding.DecodeString(record.Data)
	if err != nil {
		t.notifier.NotifyRecord(entity.NotifyLevelWarn, record.RecordId, "Processing failed: %v", fmt.Errorf("%w: %v", ErrDecode, err))
		return
	}
	stats.BytesIn = len(data)

	subRecords, err := t.deaggregator.Deaggregate(data)
	if err != nil {
		t.notifier.NotifyRecord(entity.NotifyLevelWarn, record.RecordId, "Processing failed: %v", fmt.Errorf("%w: %v", ErrDeaggregation, err))
		return
	}

	var output []byte
	for i, subRecord := range subRecords {
		stats.SubRecords++

		if t.config.PreTransformHookFunc != nil {
			switch action := t.config.PreTransformHookFunc(ctx, record.RecordId, &subRecord); action {
			case entity.HookActionProceed:
				// sub-record processing to continue as normal
			case entity.HookActionSkip:
				continue
			case entity.HookActionUnretryableError:
				t.notifier.NotifyRecord(entity.NotifyLevelWarn, record.RecordId, "Processing failed: %v (sub-record #%d)", ErrHookUnretryable, i)
				return
			default:
				t.notifier.NotifyRecord(entity.NotifyLevelWarn, record.RecordId, "Processing failed: %v: %v", ErrHookInvalidAction, action)
				return
			}
		}

		normalized, changed, err := t.normalize(subRecord)
		if err != nil {
			stats.SubRecordErrors++
			t.notifier.NotifyRecord(entity.NotifyLevelDebug, record.RecordId, "Keeping sub-record #%d unchanged: %v", i, err)
			output = append(output, subRecord...)
			continue
		}
		if changed {
			stats.SubRecordsNormalized++
		}
		if t.config.LogEventData {
			t.notifier.NotifyRecord(entity.NotifyLevelDebug, record.RecordId, "Sub-record #%d: %s, transformed into: %s", i, subRecord, normalized)
		}
		output = append(output, normalized...)
	}

	stats.BytesOut = len(output)
	outcome = entity.OutcomeRecord{
		RecordId: record.RecordId,
		Result:   entity.ResultOk,
		Data:     base64.StdEncoding.EncodeToString(output),
	}
	return
}

// normalize replaces each present normalized field with its key/value map, leaving the rest of
// the sub-record untouched. If no field was changed the sub-record is returned as-is.
func (t *Transformer) normalize(subRecord []byte) ([]byte, bool, error) {

	if !gjson.ValidBytes(subRecord) {
		return nil, false, ErrInvalidSubRecord
	}
	root := gjson.ParseBytes(subRecord)
	if !root.IsObject() {
		return nil, false, ErrSubRecordNotObject
	}

	// Paths only reach the first occurrence of a key
	occurrences := make(map[string]int)
	root.ForEach(func(key, _ gjson.Result) bool {
		occurrences[key.Str]++
		return true
	})
	for _, field := range t.config.NormalizeFields {
		if occurrences[field] > 1 {
			return nil, false, fmt.Errorf("%w: '%s'", ErrDuplicateField, field)
		}
	}

	var (
		out     = subRecord
		changed bool
	)

	for i, path := range t.paths {
		value := gjson.GetBytes(out, path)
		if !value.Exists() {
			continue
		}
		normalized, err := NormalizePairs([]byte(value.Raw))
		if err != nil {
			return nil, false, fmt.Errorf("field '%s': %w", t.config.NormalizeFields[i], err)
		}
		if out, err = sjson.SetRawBytes(out, path, normalized); err != nil {
			return nil, false, fmt.Errorf("field '%s': %w", t.config.NormalizeFields[i], err)
		}
		changed = true
	}
	return out, changed, nil
}

func failedOutcome(record entity.InputRecord) entity.OutcomeRecord {
	return entity.OutcomeRecord{
		RecordId: record.RecordId,
		Result:   entity.ResultProcessingFailed,
		Data:     record.Data,
	}
}

// escapePath escapes characters with special meaning in gjson/sjson paths, so that the
// field name is matched literally as a top-level key.
func escapePath(field string) string {
	var sb strings.Builder
	for _, c := range field {
		switch c {
		case '\\', '.', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', ':':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
