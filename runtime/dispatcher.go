package runtime

import (
	"context"
	"fmt"
	"job-chat/contract"
	"job-chat/domain/chat"
	"job-chat/errors"
	"log/slog"
	"strings"
)

// Dispatcher handles the two inbound events of a connection, join and send.
//
// A send persists first and broadcasts only after the store returned
// successfully. Append and publish of one conversation run under that
// conversation's lock, so every subscriber sees messages in store order and
// a join-with-history can never fall between the two steps.
type Dispatcher struct {
	log         *slog.Logger
	registry    contract.IRegistry
	repository  contract.IMessageRepository
	broadcaster contract.IBroadcaster
	stats       contract.IStats
	locks       *chat.KeyLocks
}

// NewDispatcher wires the core together. The broadcaster is either the local
// fan-out or the Redis bus; the dispatcher cannot tell them apart.
func NewDispatcher(log *slog.Logger, registry contract.IRegistry, repository contract.IMessageRepository,
	broadcaster contract.IBroadcaster, stats contract.IStats) *Dispatcher {
	return &Dispatcher{
		log:         log,
		registry:    registry,
		repository:  repository,
		broadcaster: broadcaster,
		stats:       stats,
		locks:       chat.NewKeyLocks(),
	}
}

// OnJoin subscribes the connection to the live channel only.
// Rendering the backlog is the caller's job.
func (d *Dispatcher) OnJoin(connID contract.ConnectionID, studentID, companyID string) (chat.ConversationKey, error) {
	key, err := chat.ResolveKey(studentID, companyID)
	if err != nil {
		return chat.ConversationKey{}, err
	}
	d.registry.Subscribe(connID, key)
	d.log.Debug("Connection joined", "conversation", key.String(), "connection_id", connID)
	return key, nil
}

// OnJoinWithHistory subscribes the connection and reads the backlog as one
// step with respect to sends on the same conversation: every message is
// either in the returned backlog or delivered live, never both, never neither.
// When the backlog cannot be read the connection is left unsubscribed.
func (d *Dispatcher) OnJoinWithHistory(ctx context.Context, connID contract.ConnectionID,
	studentID, companyID string) (chat.ConversationKey, []chat.Message, error) {
	key, err := chat.ResolveKey(studentID, companyID)
	if err != nil {
		return chat.ConversationKey{}, nil, err
	}

	unlock := d.locks.Lock(key)
	defer unlock()

	d.registry.Subscribe(connID, key)
	history, err := d.repository.ListOrdered(ctx, key)
	if err != nil {
		d.registry.Leave(connID, key)
		return key, nil, asPersistence(err)
	}
	d.log.Debug("Connection joined with history",
		"conversation", key.String(), "connection_id", connID, "backlog", len(history))
	return key, history, nil
}

// OnSend persists the message then fans it out to every current member of the
// conversation, the sender's own connection included.
// A store failure is returned and nothing is broadcast. A broadcast failure
// is logged only: the message is durable and late joiners will get it.
func (d *Dispatcher) OnSend(ctx context.Context, connID contract.ConnectionID, studentID, companyID string,
	sender chat.Sender, body string) (chat.Message, error) {
	key, err := chat.ResolveKey(studentID, companyID)
	if err != nil {
		return chat.Message{}, err
	}
	if !sender.Valid() {
		return chat.Message{}, fmt.Errorf("%w: sender %d", errors.ErrValidation, int(sender))
	}
	if strings.TrimSpace(body) == "" {
		return chat.Message{}, fmt.Errorf("%w: message body is empty", errors.ErrValidation)
	}

	unlock := d.locks.Lock(key)
	defer unlock()

	message, err := d.repository.Append(ctx, key, sender, body)
	if err != nil {
		d.stats.IncrAppendFailures()
		d.log.Error("Message not persisted, nothing broadcast",
			"conversation", key.String(), "connection_id", connID, "error", err)
		return chat.Message{}, asPersistence(err)
	}
	d.stats.IncrAppended()

	if err := d.broadcaster.Publish(ctx, message); err != nil {
		d.log.Warn("Broadcast failed after persistence",
			"conversation", key.String(), "message_id", message.ID, "error", err)
	}
	return message, nil
}

// OnLeave removes one membership of the connection.
func (d *Dispatcher) OnLeave(connID contract.ConnectionID, studentID, companyID string) (chat.ConversationKey, error) {
	key, err := chat.ResolveKey(studentID, companyID)
	if err != nil {
		return chat.ConversationKey{}, err
	}
	d.registry.Leave(connID, key)
	return key, nil
}

// OnDisconnect drops every membership of the connection.
func (d *Dispatcher) OnDisconnect(connID contract.ConnectionID) {
	d.registry.Unsubscribe(connID)
	d.log.Debug("Connection unsubscribed", "connection_id", connID)
}

func asPersistence(err error) error {
	if errors.Is(err, errors.ErrPersistence) || errors.Is(err, errors.ErrUnknownSender) {
		return err
	}
	return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
}
