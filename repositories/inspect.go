package repositories

import (
	"bytes"
	"fmt"
	"job-chat/domain/chat"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// ConversationSummary is one line of the log inspector.
type ConversationSummary struct {
	Key      chat.ConversationKey
	Messages int
	LastID   uint64
}

// ReadConversation scans one conversation in id order. It only reads, so it
// works on a database opened read-only.
func ReadConversation(db *badger.DB, key chat.ConversationKey) ([]chat.Message, error) {
	messages := make([]chat.Message, 0)
	err := db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(key)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := DecodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

// ListConversations walks the message keys only and summarises every
// conversation, ordered by company then student.
func ListConversations(db *badger.DB) ([]ConversationSummary, error) {
	var summaries []ConversationSummary
	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key, id, err := parseMessageKey(it.Item().Key())
			if err != nil {
				return err
			}
			if n := len(summaries); n > 0 && summaries[n-1].Key == key {
				summaries[n-1].Messages++
				summaries[n-1].LastID = id
				continue
			}
			summaries = append(summaries, ConversationSummary{Key: key, Messages: 1, LastID: id})
		}
		return nil
	})
	return summaries, err
}

func parseMessageKey(raw []byte) (chat.ConversationKey, uint64, error) {
	parts := bytes.Split(raw, []byte(":"))
	if len(parts) != 4 {
		return chat.ConversationKey{}, 0, fmt.Errorf("malformed message key %q", raw)
	}
	id, err := strconv.ParseUint(string(parts[3]), 10, 64)
	if err != nil {
		return chat.ConversationKey{}, 0, fmt.Errorf("malformed message id in %q: %w", raw, err)
	}
	return chat.ConversationKey{CompanyID: string(parts[1]), StudentID: string(parts[2])}, id, nil
}
