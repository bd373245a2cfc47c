package activity

import "time"

// Collection is the docstore collection holding the activity log.
const Collection = "activity"

// Entry records who did what to which entity and when.
type Entry struct {
	ID         string    `json:"id"`
	ActorRole  string    `json:"actorRole"`
	ActorName  string    `json:"actorName"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Icon       string    `json:"icon,omitempty"`
	Link       string    `json:"link,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Filter selects recent entries. Role and EntityType match as
// case-insensitive substrings.
type Filter struct {
	Limit      int
	Role       string
	EntityType string
}

const (
	DefaultLimit = 20
	MaxLimit     = 200
)
