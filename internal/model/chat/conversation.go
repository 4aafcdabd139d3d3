package chat

import "sync"

// Conversation is the ordered, append-only turn history of one session.
// Reads may run concurrently with the single writer.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{turns: make([]Turn, 0, 16)}
}

// Append adds turns at the end in the given order. All turns become visible
// to readers at once.
func (c *Conversation) Append(turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	c.mu.Lock()
	c.turns = append(c.turns, turns...)
	c.mu.Unlock()
}

// Len returns the number of stored turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Turns returns a copy of the whole history.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copied := make([]Turn, len(c.turns))
	copy(copied, c.turns)
	return copied
}

// Recent returns a copy of at most the last n turns, oldest first.
func (c *Conversation) Recent(n int) []Turn {
	if n <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	start := 0
	if len(c.turns) > n {
		start = len(c.turns) - n
	}
	copied := make([]Turn, len(c.turns)-start)
	copy(copied, c.turns[start:])
	return copied
}
