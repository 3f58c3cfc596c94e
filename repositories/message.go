package repositories

import (
	"bytes"
	"context"
	"fmt"
	"job-chat/domain/chat"
	"job-chat/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	sequenceKey       = "seq:msg"
	sequenceBandwidth = 128
)

// MessageRepository is the BadgerDB backed conversation log.
//
// Keys:
//
//	msg:{company}:{student}:{id padded to 20 digits}  -> encoded message
//	idx:student:{student}:{company}                   -> empty
//	idx:company:{company}:{student}                   -> empty
//
// The zero padded id keeps a prefix scan in id order. Identifiers never
// contain ':' (see chat.ResolveKey) so prefixes cannot overlap.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
	now func() time.Time

	// locks makes "take next id + commit" a single step per conversation, so
	// inside one conversation the order in which Append calls return is the
	// id order. Appends to other conversations go through concurrently; the
	// sequence has its own lock.
	locks *chat.KeyLocks

	clockMu sync.Mutex
	lastAt  time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: open message sequence: %v", errors.ErrPersistence, err)
	}
	return &MessageRepository{db: db, seq: seq, log: log, now: time.Now, locks: chat.NewKeyLocks()}, nil
}

// Close returns the unused part of the id lease to the database.
// It must run before the badger DB is closed.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// Append assigns the message id and timestamp and commits the record together
// with the counterpart index entries in one transaction.
func (m *MessageRepository) Append(ctx context.Context, key chat.ConversationKey, sender chat.Sender, body string) (chat.Message, error) {
	if !sender.Valid() {
		return chat.Message{}, fmt.Errorf("%w: %d", errors.ErrUnknownSender, int(sender))
	}
	if err := ctx.Err(); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	unlock := m.locks.Lock(key)
	defer unlock()

	next, err := m.seq.Next()
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: next message id: %v", errors.ErrPersistence, err)
	}
	message := chat.Message{
		ID:        next + 1,
		Key:       key,
		Sender:    sender,
		Body:      body,
		CreatedAt: m.timestamp(),
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.Key, message.ID), EncodeMessage(message)); err != nil {
			return err
		}
		if err := txn.Set(counterpartKey(chat.SenderStudent, key.StudentID, key.CompanyID), nil); err != nil {
			return err
		}
		return txn.Set(counterpartKey(chat.SenderCompany, key.CompanyID, key.StudentID), nil)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: store message: %v", errors.ErrPersistence, err)
	}
	return message, nil
}

// timestamp never goes backwards, even when the wall clock does.
func (m *MessageRepository) timestamp() time.Time {
	m.clockMu.Lock()
	defer m.clockMu.Unlock()
	at := m.now().UTC()
	if at.Before(m.lastAt) {
		at = m.lastAt
	}
	m.lastAt = at
	return at
}

// ListOrdered returns the whole conversation in ascending id order.
// An unknown conversation yields an empty slice.
func (m *MessageRepository) ListOrdered(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	messages, err := ReadConversation(m.db, key)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", errors.ErrPersistence, key, err)
	}
	return messages, nil
}

// ListCounterparts returns the identifiers of everyone the party has a
// conversation with, sorted.
func (m *MessageRepository) ListCounterparts(ctx context.Context, party chat.Sender, id string) ([]string, error) {
	if !party.Valid() {
		return nil, fmt.Errorf("%w: %d", errors.ErrUnknownSender, int(party))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	counterparts := make([]string, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := counterpartKey(party, id, "")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			counterparts = append(counterparts, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list counterparts of %s %s: %v", errors.ErrPersistence, party, id, err)
	}
	return counterparts, nil
}

func (m *MessageRepository) Ping(_ context.Context) error {
	if m.db.IsClosed() {
		return fmt.Errorf("%w: badger is closed", errors.ErrPersistence)
	}
	return nil
}

func conversationPrefix(key chat.ConversationKey) []byte {
	return []byte(fmt.Sprintf("msg:%s:%s:", key.CompanyID, key.StudentID))
}

func messageKey(key chat.ConversationKey, id uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%s:%020d", key.CompanyID, key.StudentID, id))
}

func counterpartKey(party chat.Sender, owner, counterpart string) []byte {
	return []byte(fmt.Sprintf("idx:%s:%s:%s", party, owner, counterpart))
}
