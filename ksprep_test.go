package ksprep

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zpiroux/ksprep/entity"
	"github.com/zpiroux/ksprep/internal/pkg/kpl"
)

func TestHandleRequest(t *testing.T) {

	c := NewConfig()
	c.Ops.NotifyChanSize = 16
	p, err := New(c)
	require.NoError(t, err)

	aggregated, err := kpl.Aggregate([]kpl.UserRecord{
		{PartitionKey: "pk", Data: []byte(`{"a":1,"revenue":[{"key":"x","value":5}]}`)},
		{PartitionKey: "pk", Data: []byte(`{broken`)},
		{PartitionKey: "pk", Data: []byte(`{"requestDetails":[{"key":"ua","value":"curl"}],"b":true}`)},
	})
	require.NoError(t, err)
	corrupt := append([]byte{}, aggregated...)
	corrupt[len(corrupt)-1] ^= 0xFF

	corruptData := base64.StdEncoding.EncodeToString(corrupt)
	eventJSON := `{
		"invocationId": "inv-123",
		"applicationArn": "arn:aws:kinesisanalytics:eu-west-1:123456789012:application/app",
		"streamArn": "arn:aws:kinesis:eu-west-1:123456789012:stream/stream",
		"records": [
			{"recordId": "r1", "data": "` + base64.StdEncoding.EncodeToString([]byte(`{"a":1,"revenue":[{"key":"x","value":5}]}`)) + `"},
			{"recordId": "r2", "data": "` + base64.StdEncoding.EncodeToString(aggregated) + `",
			 "kinesisStreamRecordMetadata": {"sequenceNumber": "4958", "partitionKey": "pk", "shardId": "shardId-000000000000", "approximateArrivalTimestamp": 1520280173}},
			{"recordId": "r3", "data": "` + corruptData + `"}
		]
	}`

	var event entity.Event
	require.NoError(t, json.Unmarshal([]byte(eventJSON), &event))

	response, err := p.HandleRequest(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, response.Records, 3)

	assert.Equal(t, "r1", response.Records[0].RecordId)
	assert.Equal(t, entity.ResultOk, response.Records[0].Result)
	assert.Equal(t, `{"a":1,"revenue":{"x":5}}`, decode(t, response.Records[0].Data))

	assert.Equal(t, "r2", response.Records[1].RecordId)
	assert.Equal(t, entity.ResultOk, response.Records[1].Result)
	assert.Equal(t, `{"a":1,"revenue":{"x":5}}{broken{"requestDetails":{"ua":"curl"},"b":true}`, decode(t, response.Records[1].Data))

	assert.Equal(t, "r3", response.Records[2].RecordId)
	assert.Equal(t, entity.ResultProcessingFailed, response.Records[2].Result)
	assert.Equal(t, corruptData, response.Records[2].Data)

	// Wire format
	out, err := json.Marshal(response)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), `{"records":[{"recordId":"r1","result":"Ok","data":"`))
	assert.Contains(t, string(out), `{"recordId":"r3","result":"ProcessingFailed","data":"`+corruptData+`"}`)

	// Summary line for the invocation
	var summary *entity.NotificationEvent
	for len(p.NotifyChannel()) > 0 {
		event := <-p.NotifyChannel()
		if strings.HasPrefix(event.Message, "Processing completed") {
			summary = &event
		}
	}
	require.NotNil(t, summary)
	assert.Equal(t, "Processing completed. Successful records: 2, Failed records: 1.", summary.Message)
	assert.Equal(t, "inv-123", summary.Instance)

	metrics := p.Metrics()
	assert.Equal(t, int64(3), metrics.RecordsProcessed)
	assert.Equal(t, int64(4), metrics.SubRecords)
	assert.Equal(t, int64(1), metrics.SubRecordErrors)
	assert.Equal(t, int64(3), metrics.SubRecordsNormalized)
}

func TestHandleRequestEmptyBatch(t *testing.T) {
	p, err := New(NewConfig())
	require.NoError(t, err)

	response, err := p.HandleRequest(context.Background(), entity.Event{})
	require.NoError(t, err)
	out, err := json.Marshal(response)
	require.NoError(t, err)
	assert.Equal(t, `{"records":[]}`, string(out))
}

func TestProcess(t *testing.T) {
	c := NewConfig()
	c.Dispatch.Workers = 4
	p, err := New(c)
	require.NoError(t, err)

	records := []entity.InputRecord{
		{RecordId: "1", Data: base64.StdEncoding.EncodeToString([]byte(`{"x":1}`))},
		{RecordId: "2", Data: "=invalid="},
		{RecordId: "3", Data: base64.StdEncoding.EncodeToString([]byte(`not json at all`))},
	}
	result, err := p.Process(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, len(records), result.SuccessCount+result.FailureCount)
	for i := range records {
		assert.Equal(t, records[i].RecordId, result.Outcomes[i].RecordId)
	}
	assert.Equal(t, records[0].Data, result.Outcomes[0].Data)
	assert.Equal(t, records[1].Data, result.Outcomes[1].Data)
	assert.Equal(t, records[2].Data, result.Outcomes[2].Data)
}

func TestHookWithEnrichment(t *testing.T) {
	c := NewConfig()
	c.Hooks.PreTransformHookFunc = func(ctx context.Context, recordId string, subRecord *[]byte) entity.HookAction {
		enriched, err := EnrichSubRecord(*subRecord, "source", recordId)
		if err != nil {
			return entity.HookActionUnretryableError
		}
		*subRecord = enriched
		return entity.HookActionProceed
	}
	p, err := New(c)
	require.NoError(t, err)

	records := []entity.InputRecord{
		{RecordId: "r1", Data: base64.StdEncoding.EncodeToString([]byte(`{"revenue":[{"key":"x","value":5}]}`))},
	}
	result, err := p.Process(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, `{"revenue":{"x":5},"source":"r1"}`, decode(t, result.Outcomes[0].Data))
}

func TestNotInitialized(t *testing.T) {
	_, err := New(&Config{})
	assert.ErrorIs(t, err, ErrConfigNotInitialized)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrConfigNotInitialized)

	var p *Preprocessor
	_, err = p.HandleRequest(context.Background(), entity.Event{})
	assert.ErrorIs(t, err, ErrPreprocessorNotInitialized)

	_, err = (&Preprocessor{}).Process(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPreprocessorNotInitialized)
}

func decode(t *testing.T, data string) string {
	b, err := base64.StdEncoding.DecodeString(data)
	require.NoError(t, err)
	return string(b)
}
