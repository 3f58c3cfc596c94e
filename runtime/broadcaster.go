package runtime

import (
	"context"
	"job-chat/contract"
	"job-chat/domain/chat"
	"log/slog"
)

// LocalBroadcaster delivers a message to the connections of this process.
//
// Delivery is best effort: a connection that vanished between the registry
// snapshot and the delivery is skipped without failing the publish.
type LocalBroadcaster struct {
	log       *slog.Logger
	registry  contract.IRegistry
	deliverer contract.Deliverer
	stats     contract.IStats
}

func NewLocalBroadcaster(log *slog.Logger, registry contract.IRegistry,
	deliverer contract.Deliverer, stats contract.IStats) *LocalBroadcaster {
	return &LocalBroadcaster{log: log, registry: registry, deliverer: deliverer, stats: stats}
}

func (b *LocalBroadcaster) Publish(_ context.Context, message chat.Message) error {
	for _, connID := range b.registry.MembersOf(message.Key) {
		if err := b.deliverer.Deliver(connID, message); err != nil {
			b.stats.IncrDropped()
			b.log.Debug("Delivery skipped",
				"conversation", message.Key.String(),
				"connection_id", connID,
				"message_id", message.ID,
				"error", err)
			continue
		}
		b.stats.IncrDelivered()
	}
	return nil
}
