// Package memory manages in-memory conversation history with a sliding
// window and lazy TTL expiry.
package memory

import (
	"sync"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one message in a conversation's history.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// UserTurn builds a user turn stamped now.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// AssistantTurn builds an assistant turn stamped now.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

type conversation struct {
	turns        []Turn
	lastActivity time.Time
}

// Store is a bounded, TTL-expiring per-conversation history store.
// Thread-safe for concurrent access. Expiry is lazy: stale conversations
// are swept on access, never by a background timer.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*conversation
	ttl           time.Duration

	now func() time.Time
}

// NewStore creates a store that sweeps conversations idle longer than ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		conversations: make(map[string]*conversation),
		ttl:           ttl,
		now:           time.Now,
	}
}

// sweep removes every conversation idle longer than the TTL.
// Caller must hold s.mu.
func (s *Store) sweep() {
	cutoff := s.now().Add(-s.ttl)
	for id, c := range s.conversations {
		if c.lastActivity.Before(cutoff) {
			delete(s.conversations, id)
		}
	}
}

// GetContext returns the most recent maxTurns turns for the conversation,
// creating it if absent. The stored history is truncated so it never holds
// more than 2×maxTurns turns after this call; a leading system turn, if one
// exists, survives truncation.
func (s *Store) GetContext(id string, maxTurns int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()

	c, ok := s.conversations[id]
	if !ok {
		c = &conversation{}
		s.conversations[id] = c
	}
	c.lastActivity = s.now()

	if maxTurns > 0 && len(c.turns) > 2*maxTurns {
		c.turns = truncateHead(c.turns, 2*maxTurns)
	}

	turns := c.turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = truncateHead(turns, maxTurns)
	}

	// Return a copy to prevent modification.
	result := make([]Turn, len(turns))
	copy(result, turns)
	return result
}

// truncateHead keeps the most recent keep turns, preserving a system turn
// at the head if present.
func truncateHead(turns []Turn, keep int) []Turn {
	if len(turns) <= keep {
		return turns
	}
	if turns[0].Role == RoleSystem {
		out := make([]Turn, 0, keep)
		out = append(out, turns[0])
		out = append(out, turns[len(turns)-(keep-1):]...)
		return out
	}
	return turns[len(turns)-keep:]
}

// AppendExchange appends a user turn and an assistant turn atomically.
// Appending to an unknown conversation id is a no-op: the orchestrator only
// persists an exchange onto a context it previously fetched.
func (s *Store) AppendExchange(id string, user, assistant Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return
	}
	if user.Timestamp.IsZero() {
		user.Timestamp = s.now()
	}
	if assistant.Timestamp.IsZero() {
		assistant.Timestamp = s.now()
	}
	c.turns = append(c.turns, user, assistant)
	c.lastActivity = s.now()
}

// Summary reports the turn count and last activity for a conversation.
// Absent conversations report zero turns and a nil timestamp.
func (s *Store) Summary(id string) (int, *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()

	c, ok := s.conversations[id]
	if !ok {
		return 0, nil
	}
	last := c.lastActivity
	return len(c.turns), &last
}

// Clear deletes a conversation immediately, independent of the TTL.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}
