package notify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zpiroux/ksprep/entity"
)

const logLevelEnvName = "LOG_LEVEL"

func TestNotify(t *testing.T) {

	sender := "someSender"
	instance := "someId"
	expectedMessage := "some stuff happened, foo=11"
	fmtstr := "some stuff happened, foo=%d"
	fmtval := 11
	ch := make(entity.NotifyChan, 3)
	t.Setenv(logLevelEnvName, entity.NotifyLevelStrDebug)

	notifier := New(ch, nil, 2, sender, instance)

	// Test DEBUG
	notifier.Notify(entity.NotifyLevelDebug, fmtstr, fmtval)
	event := <-ch
	expectedEvent := entity.NotificationEvent{
		Level:    "DEBUG",
		Sender:   sender,
		Instance: instance,
		Message:  expectedMessage,
		Func:     "notify.TestNotify",
	}
	event.Timestamp = ""
	assert.Equal(t, expectedEvent, event)

	// Test INFO
	notifier.Notify(entity.NotifyLevelInfo, fmtstr, fmtval)
	event = <-ch
	expectedEvent.Level = "INFO"
	event.Timestamp = ""
	assert.Equal(t, expectedEvent, event)

	// Test WARN
	notifier.Notify(entity.NotifyLevelWarn, fmtstr, fmtval)
	event = <-ch
	expectedEvent.Level = "WARN"
	expectedEvent.File = "notify_test.go"
	expectedEvent.Line = 47
	event.Timestamp = ""
	event.File = filepath.Base(event.File)
	assert.Equal(t, expectedEvent, event)

	// Test ERROR, tagged with record
	notifier.NotifyRecord(entity.NotifyLevelError, "rec1", fmtstr, fmtval)
	event = <-ch
	expectedEvent.Level = "ERROR"
	expectedEvent.Record = "rec1"
	expectedEvent.Line = 57
	event.Timestamp = ""
	event.File = filepath.Base(event.File)
	assert.NotEmpty(t, event.StackTrace)
	event.StackTrace = ""
	assert.Equal(t, expectedEvent, event)
}

func TestNotifyBelowMinLevel(t *testing.T) {
	ch := make(entity.NotifyChan, 1)
	t.Setenv(logLevelEnvName, entity.NotifyLevelStrWarn)

	notifier := New(ch, nil, 2, "someSender", "someId")
	notifier.Notify(entity.NotifyLevelInfo, "not to be sent")
	assert.Len(t, ch, 0)

	notifier.Notify(entity.NotifyLevelWarn, "to be sent")
	assert.Len(t, ch, 1)

	// Full channel must not block
	notifier.Notify(entity.NotifyLevelError, "dropped")
	assert.Len(t, ch, 1)

	// Nil channel must not block either
	notifier = New(nil, nil, 2, "someSender", "someId")
	notifier.Notify(entity.NotifyLevelError, "dropped")
}

func TestWithInstance(t *testing.T) {
	ch := make(entity.NotifyChan, 1)
	notifier := New(ch, nil, 2, "dispatcher", "")
	invocationNotifier := notifier.WithInstance("invocation-1")

	assert.Equal(t, "", notifier.Instance())
	assert.Equal(t, "invocation-1", invocationNotifier.Instance())
	assert.Equal(t, "dispatcher", invocationNotifier.Sender())

	invocationNotifier.Notify(entity.NotifyLevelError, "something")
	event := <-ch
	assert.Equal(t, "invocation-1", event.Instance)
}

func TestMinLogLevel(t *testing.T) {

	sender := "someSender"
	instance := "someId"
	ch := make(entity.NotifyChan, 3)
	curLvl := os.Getenv(logLevelEnvName)
	defer os.Setenv(logLevelEnvName, curLvl)

	// Empty os env var --> min level INFO
	os.Setenv(logLevelEnvName, "")
	notifier := New(ch, nil, 2, sender, instance)
	assert.Equal(t, entity.NotifyLevelInfo, notifier.minNotifyLevel)

	// Invalid os env var --> min level INFO
	os.Setenv(logLevelEnvName, "SOME_INVALID_LEVEL")
	notifier = New(ch, nil, 2, sender, instance)
	assert.Equal(t, entity.NotifyLevelInfo, notifier.minNotifyLevel)

	// Valid levels
	os.Setenv(logLevelEnvName, entity.NotifyLevelStrInfo)
	notifier = New(ch, nil, 2, sender, instance)
	assert.Equal(t, entity.NotifyLevelInfo, notifier.minNotifyLevel)

	os.Setenv(logLevelEnvName, "warn")
	notifier = New(ch, nil, 2, sender, instance)
	assert.Equal(t, entity.NotifyLevelWarn, notifier.minNotifyLevel)

	os.Setenv(logLevelEnvName, entity.NotifyLevelStrError)
	notifier = New(ch, nil, 2, sender, instance)
	assert.Equal(t, entity.NotifyLevelError, notifier.minNotifyLevel)
}
