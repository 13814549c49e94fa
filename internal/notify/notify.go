package notify

import (
	"context"
	"time"
)

// Notification is one alert delivery. AlertID is zero for non-alert chimes.
type Notification struct {
	AlertID   int64
	Title     string
	Message   string
	Timestamp time.Time
}

// Notifier is a single delivery channel.
type Notifier interface {
	// Name identifies the channel in config and logs.
	Name() string

	// Available reports whether the channel can deliver in this environment.
	Available() bool

	// Notify delivers the notification. Errors are logged by the caller and
	// never affect other channels.
	Notify(ctx context.Context, note *Notification) error
}
