package registry

import "errors"

var (
	// ErrNotFound is returned when a player key is not tracked.
	ErrNotFound = errors.New("player not tracked")
)

// Player is one tracked player record.
type Player struct {
	// Platform is the canonical upper-case platform code (PC, X1, PS4, SWITCH).
	Platform string `json:"platform"`
	// Notify controls whether state changes produce a notification.
	Notify bool `json:"notify"`
	// LastState is the most recently observed state code, serialized as
	// null until the first successful poll.
	LastState *string `json:"last_state"`
	// OriginalName preserves the name as the user typed it; map keys are
	// lowercased for case-insensitive lookup.
	OriginalName string `json:"original_name"`
}

// Last returns the most recently observed state code, empty when the player
// has not been polled yet.
func (p Player) Last() string {
	if p.LastState == nil {
		return ""
	}
	return *p.LastState
}

// Entry pairs a registry key with its player record for ordered listings.
type Entry struct {
	Key    string
	Player Player
}

// Snapshot is the serialized registry state. JSON field names match the
// on-disk state file format.
type Snapshot struct {
	Players map[string]Player `json:"players"`
	// ChatID is the chat that receives notifications; nil until /start binds one.
	ChatID *int64 `json:"chat_id"`
	// Adding tracks in-progress menu additions, keyed by decimal chat id.
	// A nil value means "awaiting player name"; a non-nil value holds the
	// entered name while awaiting platform selection.
	Adding map[string]*string `json:"adding_player,omitempty"`
}
