package models

import "time"

// PollOption is one answer of a poll together with who voted for it.
type PollOption struct {
	Text   string   `json:"text"`
	Votes  int      `json:"votes"`
	Voters []string `json:"voters"`
}

// Poll is a room timeline entry stored separately from messages.
type Poll struct {
	ID            string       `json:"id"`
	RoomID        string       `json:"roomId"`
	Question      string       `json:"question"`
	Options       []PollOption `json:"options"`
	CreatedBy     string       `json:"createdBy"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
	IsActive      bool         `json:"isActive"`
	AllowMultiple bool         `json:"allowMultipleVotes"`
	TotalVotes    int          `json:"totalVotes"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Expired reports whether the poll is past its expiry.
func (p Poll) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// HasVoted reports whether the user voted on any option.
func (p Poll) HasVoted(userID string) bool {
	for _, option := range p.Options {
		for _, voter := range option.Voters {
			if voter == userID {
				return true
			}
		}
	}
	return false
}
