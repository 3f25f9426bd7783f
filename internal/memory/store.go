// Package memory provides conversation memory storage.
package memory

import (
	"sync"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/llm"
)

// Conversation holds the state of a single conversation.
type Conversation struct {
	ID        string        `json:"id"`
	Messages  []llm.Message `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store manages conversation memory in process. Conversations are keyed
// by session token, so a logout or restart starts a fresh dialogue.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	maxMessages   int // per conversation
	now           func() time.Time
}

// NewStore creates a new memory store.
func NewStore(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = 100
	}
	return &Store{
		conversations: make(map[string]*Conversation),
		maxMessages:   maxMessages,
		now:           time.Now,
	}
}

// AddMessages appends messages to a conversation, creating it if needed.
func (s *Store) AddMessages(conversationID string, msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = &Conversation{ID: conversationID, CreatedAt: now}
		s.conversations[conversationID] = conv
	}

	conv.Messages = append(conv.Messages, msgs...)
	conv.UpdatedAt = now

	if len(conv.Messages) > s.maxMessages {
		conv.Messages = trim(conv.Messages, s.maxMessages)
	}
}

// trim keeps at most max recent messages. The kept window always starts
// at a user message so no tool result is separated from the call that
// produced it.
func trim(msgs []llm.Message, max int) []llm.Message {
	kept := msgs[len(msgs)-max:]
	for len(kept) > 0 && kept[0].Role != llm.RoleUser {
		kept = kept[1:]
	}
	out := make([]llm.Message, len(kept))
	copy(out, kept)
	return out
}

// GetMessages retrieves messages for a conversation.
// Returns empty slice if conversation doesn't exist.
func (s *Store) GetMessages(conversationID string) []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return []llm.Message{}
	}

	msgs := make([]llm.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	return msgs
}

// Clear removes a conversation.
func (s *Store) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
}

// Stats returns memory statistics.
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totalMessages := 0
	var lastActivity time.Time
	for _, conv := range s.conversations {
		totalMessages += len(conv.Messages)
		if conv.UpdatedAt.After(lastActivity) {
			lastActivity = conv.UpdatedAt
		}
	}

	stats := map[string]any{
		"conversations": len(s.conversations),
		"messages":      totalMessages,
		"max_per_conv":  s.maxMessages,
	}
	if !lastActivity.IsZero() {
		stats["last_activity"] = lastActivity.UTC().Format(time.RFC3339)
	}
	return stats
}
