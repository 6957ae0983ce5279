package ledgerclient

// NotificationKind labels an outcome notification for the hosting UI.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyWarning NotificationKind = "warning"
)

// Sink receives outcome notifications from an adjustment intent. Injecting it
// keeps the reporting dependency explicit and testable.
type Sink interface {
	Notify(kind NotificationKind, message string)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) Notify(NotificationKind, string) {}
