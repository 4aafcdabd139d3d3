package chat

import "time"

// Role tags the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a conversation may hold.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one utterance in a conversation. Turns are never modified after
// they are appended.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserTurn builds a user turn stamped with the current time.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, CreatedAt: time.Now().UTC()}
}

// AssistantTurn builds an assistant turn stamped with the current time.
func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text, CreatedAt: time.Now().UTC()}
}
