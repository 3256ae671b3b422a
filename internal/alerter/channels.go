package alerter

import "time"

// Notification is one rendered, ready-to-deliver notification. A single
// notification may cover several targets that changed status together.
type Notification struct {
	Title    string
	Body     string
	Severity string
	Sound    bool
	Targets  []string
	SentAt   time.Time
}

// Channel defines the interface for notification channels
type Channel interface {
	// Name returns the channel name
	Name() string

	// Send delivers a notification
	Send(n *Notification) error

	// IsEnabled returns whether the channel is enabled
	IsEnabled() bool
}
