package runtime

import (
	"job-chat/contract"
	"job-chat/domain/chat"
	"sync"

	"github.com/samber/lo"
)

type Set map[contract.ConnectionID]struct{}

// Registry is the process-local subscription table. It is lost on restart,
// together with the connections it describes.
//
// Membership is kept twice, once per direction, under the same lock:
// 1. members answers "who follows this conversation" for every broadcast.
// 2. subscriptions answers "what does this connection follow" on disconnect.
//
// A connection appears at most once per conversation however many times it
// joins, which is what keeps a broadcast from reaching it twice.
type Registry struct {
	mu sync.RWMutex
	// conversation -> connections
	members map[chat.ConversationKey]Set
	// connection -> conversations, so a disconnect does not scan every room
	subscriptions map[contract.ConnectionID]map[chat.ConversationKey]struct{}
}

// NewRegistry returns an empty table.
func NewRegistry() *Registry {
	return &Registry{
		members:       make(map[chat.ConversationKey]Set),
		subscriptions: make(map[contract.ConnectionID]map[chat.ConversationKey]struct{}),
	}
}

// Subscribe adds the connection to the conversation.
// Subscribing twice to the same conversation is a no-op.
func (r *Registry) Subscribe(connID contract.ConnectionID, key chat.ConversationKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[key]; !ok {
		r.members[key] = make(Set)
	}
	r.members[key][connID] = struct{}{}

	if _, ok := r.subscriptions[connID]; !ok {
		r.subscriptions[connID] = make(map[chat.ConversationKey]struct{})
	}
	r.subscriptions[connID][key] = struct{}{}
}

// Leave removes a single membership.
func (r *Registry) Leave(connID contract.ConnectionID, key chat.ConversationKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, key)
}

// Unsubscribe removes every membership of the connection. It is safe to call
// for a connection that never subscribed or was already removed.
func (r *Registry) Unsubscribe(connID contract.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.subscriptions[connID] {
		r.leaveLocked(connID, key)
	}
	delete(r.subscriptions, connID)
}

// MembersOf returns a snapshot of the connections following the conversation.
// The snapshot is a copy taken under the read lock, so the broadcaster can
// deliver without holding it. It may be stale by the time it is used: a
// connection that left in between is absorbed by the deliverer as gone.
// Returns an empty slice for a conversation nobody follows.
func (r *Registry) MembersOf(key chat.ConversationKey) []contract.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.members[key])
}

// Count returns the number of active subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.SumBy(lo.Values(r.members), func(s Set) int { return len(s) })
}

// leaveLocked never leaves empty sets behind, so an abandoned conversation
// costs nothing.
func (r *Registry) leaveLocked(connID contract.ConnectionID, key chat.ConversationKey) {
	if members, ok := r.members[key]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.members, key)
		}
	}
	if keys, ok := r.subscriptions[connID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.subscriptions, connID)
		}
	}
}
