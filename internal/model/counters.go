package model

// Counter names used by the aggregator and the counters snapshot.
const (
	CounterMessages      = "messages"
	CounterNotifications = "notifications"
)

// UnreadCounters holds the unread totals per logical source.
type UnreadCounters struct {
	Messages      int `json:"messages" db:"messages"`
	Notifications int `json:"notifications" db:"notifications"`
}

// Total is the combined badge value.
func (c UnreadCounters) Total() int {
	return c.Messages + c.Notifications
}

// Get returns the counter with the given name, or zero for unknown names.
func (c UnreadCounters) Get(name string) int {
	switch name {
	case CounterMessages:
		return c.Messages
	case CounterNotifications:
		return c.Notifications
	default:
		return 0
	}
}

// With returns a copy of c with the named counter set to n.
func (c UnreadCounters) With(name string, n int) UnreadCounters {
	switch name {
	case CounterMessages:
		c.Messages = n
	case CounterNotifications:
		c.Notifications = n
	}
	return c
}
