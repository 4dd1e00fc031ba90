package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zpiroux/ksprep/entity"
	"github.com/zpiroux/ksprep/entity/transform"
	"github.com/zpiroux/ksprep/internal/pkg/kpl"
	"github.com/zpiroux/ksprep/pkg/notify"
)

func TestDispatcher(t *testing.T) {

	ch := make(entity.NotifyChan, 10)
	notifier := notify.New(ch, nil, 2, "dispatcher", "")
	dispatcher := NewDispatcher(Config{}, &MockTransformer{}, notifier)

	records := []entity.InputRecord{
		{RecordId: "r1", Data: "ok"},
		{RecordId: "r2", Data: "fail"},
		{RecordId: "r3", Data: "ok"},
		{RecordId: "r4", Data: "bad"},
	}
	result := dispatcher.Dispatch(context.Background(), "invocation-1", records)

	require.Len(t, result.Outcomes, len(records))
	for i, outcome := range result.Outcomes {
		assert.Equal(t, records[i].RecordId, outcome.RecordId)
	}
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
	assert.Equal(t, entity.ResultProcessingFailed, result.Outcomes[1].Result)
	assert.Equal(t, "fail", result.Outcomes[1].Data)

	event := <-ch
	assert.Equal(t, "Processing completed. Successful records: 2, Failed records: 2.", event.Message)
	assert.Equal(t, "invocation-1", event.Instance)
	assert.Equal(t, entity.NotifyLevelStrInfo, event.Level)

	metrics := dispatcher.Metrics()
	assert.Equal(t, int64(1), metrics.Batches)
	assert.Equal(t, int64(4), metrics.RecordsProcessed)
	assert.Equal(t, int64(2), metrics.RecordsSucceeded)
	assert.Equal(t, int64(2), metrics.RecordsFailed)
	assert.Equal(t, int64(2), metrics.SubRecords)
	assert.Contains(t, dispatcher.MetricsSummary(), `"Records":4`)
}

func TestDispatcherEmptyBatch(t *testing.T) {
	dispatcher := NewDispatcher(Config{Workers: 4}, &MockTransformer{}, nil)
	result := dispatcher.Dispatch(context.Background(), "", nil)
	assert.Empty(t, result.Outcomes)
	assert.Equal(t, 0, result.SuccessCount+result.FailureCount)
}

func TestDispatcherConcurrentKeepsOrder(t *testing.T) {

	transformer := transform.NewTransformer(transform.Config{}, kpl.NewDeaggregator(), nil)
	dispatcher := NewDispatcher(Config{Workers: 8}, &slowTransformer{t: transformer}, nil)

	var records []entity.InputRecord
	for i := 0; i < 100; i++ {
		data := fmt.Sprintf(`{"n":%d,"revenue":[{"key":"k","value":%d}]}`, i, i)
		if i%10 == 0 {
			records = append(records, entity.InputRecord{RecordId: fmt.Sprint(i), Data: "%%%"})
			continue
		}
		records = append(records, entity.InputRecord{RecordId: fmt.Sprint(i), Data: base64.StdEncoding.EncodeToString([]byte(data))})
	}

	result := dispatcher.Dispatch(context.Background(), "invocation-2", records)
	require.Len(t, result.Outcomes, 100)
	assert.Equal(t, 90, result.SuccessCount)
	assert.Equal(t, 10, result.FailureCount)

	for i, outcome := range result.Outcomes {
		require.Equal(t, records[i].RecordId, outcome.RecordId)
		if i%10 == 0 {
			assert.Equal(t, entity.ResultProcessingFailed, outcome.Result)
			assert.Equal(t, "%%%", outcome.Data)
			continue
		}
		data, err := base64.StdEncoding.DecodeString(outcome.Data)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf(`{"n":%d,"revenue":{"k":%d}}`, i, i), string(data))
	}

	metrics := dispatcher.Metrics()
	assert.Equal(t, int64(90), metrics.SubRecords)
	assert.Equal(t, int64(90), metrics.SubRecordsNormalized)
}

type MockTransformer struct{}

func (m *MockTransformer) Transform(ctx context.Context, record entity.InputRecord) (entity.OutcomeRecord, entity.TransformStats) {
	switch record.Data {
	case "ok":
		return entity.OutcomeRecord{RecordId: record.RecordId, Result: entity.ResultOk, Data: strings.ToUpper(record.Data)}, entity.TransformStats{SubRecords: 1}
	default:
		return entity.OutcomeRecord{RecordId: record.RecordId, Result: entity.ResultProcessingFailed, Data: record.Data}, entity.TransformStats{}
	}
}

type slowTransformer struct {
	t RecordTransformer
}

func (s *slowTransformer) Transform(ctx context.Context, record entity.InputRecord) (entity.OutcomeRecord, entity.TransformStats) {
	time.Sleep(time.Duration(rand.Intn(500)) * time.Microsecond)
	return s.t.Transform(ctx, record)
}
