// Package chat contains the core concepts of the student/company chat.
// Messages are immutable once the store has assigned their ID.
package chat

import (
	"time"
)

// Message is one entry of a conversation log.
type Message struct {
	ID        uint64 // store assigned, authoritative ordering key
	Key       ConversationKey
	Sender    Sender
	Body      string
	CreatedAt time.Time
}

// LastID returns the ID of the last message, 0 for an empty backlog.
func LastID(messages []Message) uint64 {
	if len(messages) == 0 {
		return 0
	}
	return messages[len(messages)-1].ID
}
