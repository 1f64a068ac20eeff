// internal/service/identity/events.go
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"workwise-service/internal/domain/auth"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventsChannel carries every session-change notification.
const EventsChannel = "auth:events"

// EventBus fans session-change events out to every process over Redis pub/sub.
type EventBus struct {
	client *redis.Client
	logger *zap.Logger
}

func NewEventBus(client *redis.Client, logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{client: client, logger: logger.Named("events")}
}

// Publish broadcasts ev. A zero At is stamped with the current time.
func (b *EventBus) Publish(ctx context.Context, ev auth.Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, EventsChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Kind, err)
	}
	return nil
}

// EventSubscription delivers events to one handler until Unsubscribe.
type EventSubscription struct {
	ps   *redis.PubSub
	once sync.Once
	done chan struct{}
}

// Subscribe returns once Redis has confirmed the subscription, so no event
// published afterwards is missed. fn runs on a single goroutine in
// publication order.
func (b *EventBus) Subscribe(ctx context.Context, fn func(auth.Event)) (*EventSubscription, error) {
	ps := b.client.Subscribe(ctx, EventsChannel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", EventsChannel, err)
	}

	sub := &EventSubscription{ps: ps, done: make(chan struct{})}
	ch := ps.Channel()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev auth.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("dropping malformed event", zap.Error(err))
					continue
				}
				select {
				case <-sub.done:
					return
				default:
				}
				fn(ev)
			}
		}
	}()

	return sub, nil
}

// Unsubscribe stops delivery. Safe to call more than once.
func (s *EventSubscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.ps.Close()
	})
}
