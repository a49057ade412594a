package model

import "time"

// NotificationKind distinguishes system notifications from inbox messages.
type NotificationKind string

const (
	KindNotification NotificationKind = "notification"
	KindMessage      NotificationKind = "message"
)

// Notification is the normalized display record built from the backend's
// notification and message payloads.
type Notification struct {
	// ID is the backend identifier of the record.
	ID string `json:"id"`

	// Kind selects which mark-read endpoints apply to this record.
	Kind NotificationKind `json:"kind"`

	// Unread is flipped to false locally as soon as a mark-read call
	// succeeds, ahead of the next authoritative refresh.
	Unread bool `json:"unread"`

	// Title is the human-readable headline.
	Title string `json:"title"`

	// Description is the trimmed, bounded-length body summary.
	Description string `json:"description"`

	// TargetLink is the in-app route the record points to.
	TargetLink string `json:"target_link"`

	// FetchedAt is when this record was last retrieved.
	FetchedAt time.Time `json:"fetched_at"`
}
