package entity

import "strings"

// NotificationEvent is the type of the events sent to the notification channel,
// which is accessible externally with ksprep.Preprocessor.NotifyChannel().
type NotificationEvent struct {

	// The notification level
	Level string

	// Timestamp of the event on the format "2006-01-02T15:04:05.000000Z"
	Timestamp string

	// The component type of the sender, e.g. "dispatcher", "transformer", etc
	Sender string

	// The unique instance ID of the sender, normally the invocation ID
	Instance string

	// The record ID, if applicable
	Record string

	Message string

	// Location and stack info, from where notification was sent.
	// Func is always provided.
	// File and Line are added when notification level is WARN or above.
	// StackTrace is added when notification level is ERROR.
	Func       string
	File       string
	Line       int
	StackTrace string
}

type NotifyChan chan NotificationEvent

const (
	NotifyLevelInvalid = iota
	NotifyLevelDebug
	NotifyLevelInfo
	NotifyLevelWarn
	NotifyLevelError
)

const (
	NotifyLevelStrInvalid = "INVALID"
	NotifyLevelStrDebug   = "DEBUG"
	NotifyLevelStrInfo    = "INFO"
	NotifyLevelStrWarn    = "WARN"
	NotifyLevelStrError   = "ERROR"
)

var notifyLevelName = map[int]string{
	NotifyLevelInvalid: NotifyLevelStrInvalid,
	NotifyLevelDebug:   NotifyLevelStrDebug,
	NotifyLevelInfo:    NotifyLevelStrInfo,
	NotifyLevelWarn:    NotifyLevelStrWarn,
	NotifyLevelError:   NotifyLevelStrError,
}

func NotifyLevelName(notifyLevel int) string {
	name, ok := notifyLevelName[notifyLevel]
	if !ok {
		name = NotifyLevelStrInvalid
	}
	return name
}

// NotifyLevel returns the notification level matching the provided name, e.g. "WARN",
// or NotifyLevelInvalid if not recognized.
func NotifyLevel(name string) int {
	for level, levelName := range notifyLevelName {
		if level != NotifyLevelInvalid && strings.EqualFold(name, levelName) {
			return level
		}
	}
	return NotifyLevelInvalid
}
