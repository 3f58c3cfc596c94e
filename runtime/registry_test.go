package runtime

import (
	"job-chat/contract"
	"job-chat/domain/chat"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newConnID() contract.ConnectionID {
	return contract.ConnectionID(uuid.NewString())
}

func TestRegistry_Subscribe_One_Room_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := newConnID()
	key := chat.ConversationKey{CompanyID: "C1", StudentID: "S1"}

	// Given no connection is subscribed
	req.Empty(registry.members)
	req.Empty(registry.subscriptions)

	// When a connection subscribes a conversation
	registry.Subscribe(connID, key)

	// Then
	req.Equal([]contract.ConnectionID{connID}, registry.MembersOf(key))
	req.Equal(1, registry.Count())
}

func TestRegistry_Subscribe_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := newConnID()
	key := chat.ConversationKey{CompanyID: "C1", StudentID: "S1"}

	// When the same connection subscribes twice
	registry.Subscribe(connID, key)
	registry.Subscribe(connID, key)

	// Then it is counted once
	req.Len(registry.MembersOf(key), 1)
	req.Equal(1, registry.Count())
}

func TestRegistry_Subscribe_One_Room_Multiple_Participants(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn1, conn2 := newConnID(), newConnID()
	key := chat.ConversationKey{CompanyID: "C1", StudentID: "S1"}

	// When connections subscribe a conversation
	registry.Subscribe(conn1, key)
	registry.Subscribe(conn2, key)

	// Then
	req.ElementsMatch([]contract.ConnectionID{conn1, conn2}, registry.MembersOf(key))
}

func TestRegistry_Unsubscribe_Removes_All_Memberships(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn1, conn2 := newConnID(), newConnID()
	k1 := chat.ConversationKey{CompanyID: "C1", StudentID: "S1"}
	k2 := chat.ConversationKey{CompanyID: "C2", StudentID: "S1"}

	// Given a connection following two conversations
	registry.Subscribe(conn1, k1)
	registry.Subscribe(conn1, k2)
	registry.Subscribe(conn2, k1)

	// When it disconnects, twice
	registry.Unsubscribe(conn1)
	registry.Unsubscribe(conn1)

	// Then only the other connection is left and no empty set remains
	req.Equal([]contract.ConnectionID{conn2}, registry.MembersOf(k1))
	req.Empty(registry.MembersOf(k2))
	req.NotContains(registry.members, k2)
	req.NotContains(registry.subscriptions, conn1)
	req.Equal(1, registry.Count())
}

func TestRegistry_Leave_Removes_One_Membership(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := newConnID()
	k1 := chat.ConversationKey{CompanyID: "C1", StudentID: "S1"}
	k2 := chat.ConversationKey{CompanyID: "C2", StudentID: "S1"}

	registry.Subscribe(connID, k1)
	registry.Subscribe(connID, k2)

	registry.Leave(connID, k1)

	req.Empty(registry.MembersOf(k1))
	req.Equal([]contract.ConnectionID{connID}, registry.MembersOf(k2))
}

func TestRegistry_Snapshot_Is_Detached(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := newConnID()
	key := chat.ConversationKey{CompanyID: "C1", StudentID: "S1"}
	registry.Subscribe(connID, key)

	// Given a snapshot taken before a disconnect
	snapshot := registry.MembersOf(key)
	registry.Unsubscribe(connID)

	// Then the snapshot is unchanged
	req.Equal([]contract.ConnectionID{connID}, snapshot)
	req.Empty(registry.MembersOf(key))
}

func TestRegistry_Concurrent_Access(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	key := chat.ConversationKey{CompanyID: "C1", StudentID: "S1"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			connID := newConnID()
			registry.Subscribe(connID, key)
			_ = registry.MembersOf(key)
			registry.Unsubscribe(connID)
		}()
	}
	wg.Wait()

	req.Zero(registry.Count())
	req.Empty(registry.MembersOf(key))
}
