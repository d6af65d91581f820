// Package subscription merges a historical replay (from persisted
// storage) with the live event bus into a single stream: historical
// facts first, then the live events. The live subscription is opened
// before replay starts, and facts that appear both in history and on the
// bus are not deduplicated.
package subscription

import (
	"context"

	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/eventbus"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/replica"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/storage"
)

// HistoricalFetcher returns the page of persisted records starting at
// cursor together with the cursor of the next page; Stream pages through
// it until it returns an empty page, the signal to splice onto the live
// stream.
type HistoricalFetcher func(ctx context.Context, cursor int64) ([]storage.UTXORecord, int64, error)

// Stream yields facts in order; the caller must drain it until it closes
// or cancel the context to stop early. Live events that arrive during
// historical replay are drained into an in-memory slice between pages
// and forwarded once replay finishes; that slice is unbounded, and the
// subscription is not aborted when events are dropped by the eventbus's
// drop-when-full policy.
func Stream(ctx context.Context, bus *eventbus.Bus, topic string, historical HistoricalFetcher) <-chan replica.Fact {
	out := make(chan replica.Fact, 256)

	go func() {
		defer close(out)

		live := bus.Subscribe(topic)
		defer live.Close()

		var buffered []eventbus.Event

		cursor := int64(0)
		for {
			page, next, err := historical(ctx, cursor)
			if err != nil {
				return
			}
			for _, rec := range page {
				select {
				case out <- recordToFact(rec):
				case <-ctx.Done():
					return
				}
			}
			if len(page) == 0 {
				break
			}
			cursor = next

			// Drain any live events that arrived while we were replaying
			// history, without blocking, so the subscription's bus buffer
			// does not fill up during a long replay.
			drainNonBlocking(live, &buffered)
		}

		// Splice: replay finished, now forward buffered live events plus
		// everything still arriving.
		for _, ev := range buffered {
			select {
			case out <- eventToFact(ev):
			case <-ctx.Done():
				return
			}
		}

		for {
			select {
			case ev, ok := <-live.Events():
				if !ok {
					return
				}
				select {
				case out <- eventToFact(ev):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func drainNonBlocking(sub *eventbus.Subscription, buffered *[]eventbus.Event) {
	for {
		select {
		case ev := <-sub.Events():
			*buffered = append(*buffered, ev)
		default:
			return
		}
	}
}

func recordToFact(rec storage.UTXORecord) replica.Fact {
	kind := replica.FactUTXOCreated
	if rec.Spent {
		kind = replica.FactUTXOSpent
	}
	return replica.Fact{Height: rec.Height, Kind: kind, Data: rec}
}

func eventToFact(ev eventbus.Event) replica.Fact {
	if f, ok := ev.Data.(replica.Fact); ok {
		return f
	}
	return replica.Fact{Kind: replica.FactTransactionResult, Data: ev.Data}
}
