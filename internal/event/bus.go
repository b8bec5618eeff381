// Package event publishes dispatch lifecycle events using watermill.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gaold/git/internal/logging"
	"github.com/oklog/ulid/v2"
)

// Topic is the watermill topic all dispatch events are published on.
const Topic = "git.dispatch"

// Subscriber receives events in publish order.
type Subscriber func(event Event)

// Bus delivers events to subscribers over a gochannel pub/sub. Publish blocks
// until every subscriber has handled the event, so a subscriber sees the
// dispatch in order and has seen all of it once the dispatch returns.
type Bus struct {
	pubsub  *gochannel.GoChannel
	session string

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewBus creates a bus with a fresh session ID.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				BlockPublishUntilSubscriberAck: true,
				Persistent:                     false,
			},
			watermill.NopLogger{},
		),
		session: ulid.Make().String(),
	}
}

// Session identifies every event published by this bus.
func (b *Bus) Session() string {
	return b.session
}

// Subscribe registers fn for all events. The returned function unsubscribes.
func (b *Bus) Subscribe(fn Subscriber) (func(), error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return func() {}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		cancel()
		return nil, err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			var e Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				logging.Warn().Err(err).Str("uuid", msg.UUID).Msg("dropping malformed event")
			} else {
				fn(e)
			}
			msg.Ack()
		}
	}()
	return cancel, nil
}

// Publish stamps e with an ID, the session and the current time and delivers
// it. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(e Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}

	e.ID = ulid.Make().String()
	e.Session = b.session
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.pubsub.Publish(Topic, message.NewMessage(e.ID, payload))
}

// Close stops delivery and waits for subscribers to finish.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}
