package workers

import (
	"context"
	"fmt"
	"job-chat/contract"
	"log/slog"
)

// BusRelay feeds messages published on the shared bus, by this instance or
// any other, to the local broadcaster. A broken subscription is returned as an
// error so the supervisor restarts the relay.
type BusRelay struct {
	log         *slog.Logger
	feed        contract.IMessageFeed
	broadcaster contract.IBroadcaster
}

func NewBusRelay(log *slog.Logger, feed contract.IMessageFeed, broadcaster contract.IBroadcaster) *BusRelay {
	return &BusRelay{log: log, feed: feed, broadcaster: broadcaster}
}

func (w *BusRelay) Run(ctx context.Context) error {
	w.log.Info("Bus relay subscribed")
	err := w.feed.Subscribe(ctx, w.broadcaster.Publish)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		return fmt.Errorf("bus subscription closed")
	}
	return fmt.Errorf("bus subscription: %w", err)
}
