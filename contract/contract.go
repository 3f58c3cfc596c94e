//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"job-chat/domain/chat"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ConnectionID identifies one live transport connection.
type ConnectionID string

// IMessageRepository is the durable, append-only conversation log.
type IMessageRepository interface {
	Append(ctx context.Context, key chat.ConversationKey, sender chat.Sender, body string) (chat.Message, error)
	ListOrdered(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error)
	ListCounterparts(ctx context.Context, party chat.Sender, id string) ([]string, error)
	Ping(ctx context.Context) error
}

// IRegistry tracks which live connections follow which conversation.
type IRegistry interface {
	Subscribe(connID ConnectionID, key chat.ConversationKey)
	Leave(connID ConnectionID, key chat.ConversationKey)
	Unsubscribe(connID ConnectionID)
	MembersOf(key chat.ConversationKey) []ConnectionID
	Count() int
}

// Deliverer is the transport side of a broadcast: it pushes a persisted
// message to one connection. Unknown connections yield errors.ErrConnectionGone.
type Deliverer interface {
	Deliver(connID ConnectionID, message chat.Message) error
}

// IBroadcaster fans a persisted message out to every interested connection.
type IBroadcaster interface {
	Publish(ctx context.Context, message chat.Message) error
}

// IStats receives counters from the chat core.
type IStats interface {
	IncrAppended()
	IncrAppendFailures()
	IncrDelivered()
	IncrDropped()
}

// MessageHandler consumes a persisted message coming from a feed.
type MessageHandler func(ctx context.Context, message chat.Message) error

// IMessageFeed streams messages published by any instance of the service.
// Subscribe blocks until ctx is done or the feed breaks.
type IMessageFeed interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
}
