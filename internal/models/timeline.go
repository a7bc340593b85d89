package models

import "time"

// TimelineKind distinguishes the entity behind a timeline entry.
type TimelineKind string

const (
	TimelineMessage TimelineKind = "message"
	TimelinePoll    TimelineKind = "poll"
)

// TimelineEntry interleaves messages and polls for rendering.
type TimelineEntry struct {
	Kind    TimelineKind `json:"kind"`
	At      time.Time    `json:"at"`
	Message *Message     `json:"message,omitempty"`
	Poll    *Poll        `json:"poll,omitempty"`
}
