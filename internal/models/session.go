package models

import "time"

// MaxContextTurns bounds a user's stored conversation context. The oldest
// turn is dropped first.
const MaxContextTurns = 10

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a user's conversation context.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// AppendTurn appends a turn and trims the context to MaxContextTurns,
// dropping the oldest entries.
func AppendTurn(turns []Turn, turn Turn) []Turn {
	turns = append(turns, turn)
	if len(turns) > MaxContextTurns {
		turns = turns[len(turns)-MaxContextTurns:]
	}
	return turns
}
