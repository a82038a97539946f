package events

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"

	"github.com/GoBucketStore/go-bucket-store/models"
)

type subscription struct {
	id      models.SubscriptionID
	handler models.EventHandler
}

type topicState struct {
	subs   []subscription
	cancel context.CancelFunc
}

// eventBus fans storage change events out to local handlers over a PubSub
// transport. One consumer goroutine runs per subscribed topic; handlers run
// on their own goroutines behind a shared concurrency limit.
type eventBus struct {
	config *models.Config
	pubsub models.PubSub
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	topics map[string]*topicState

	subIDCounter atomic.Uint64

	handlerSem chan struct{}

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewEventBus(config *models.Config, logger watermill.LoggerAdapter, ps models.PubSub) models.EventBus {
	rootCtx, cancel := context.WithCancel(context.Background())

	maxHandlers := 100
	if config.EventBus.MaxConcurrentHandlers > 0 {
		maxHandlers = config.EventBus.MaxConcurrentHandlers
	}

	return &eventBus{
		config:     config,
		pubsub:     ps,
		logger:     logger,
		topics:     make(map[string]*topicState),
		handlerSem: make(chan struct{}, maxHandlers),
		rootCtx:    rootCtx,
		cancel:     cancel,
	}
}

// topic maps an event type like "storage.entry_set" to its transport topic,
// applying the configured prefix so several deployments can share a broker.
func (bus *eventBus) topic(eventType string) string {
	prefix := bus.config.EventBus.Prefix
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

func (bus *eventBus) Publish(ctx context.Context, evt models.Event) error {
	event := evt

	if event.Type == "" {
		return fmt.Errorf("eventbus: event type must not be empty")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &models.Message{
		UUID:    event.ID,
		Payload: payload,
		Metadata: map[string]string{
			"event_type": event.Type,
			"timestamp":  event.Timestamp.Format(time.RFC3339Nano),
		},
	}

	return bus.pubsub.Publish(ctx, bus.topic(event.Type), msg)
}

func (bus *eventBus) Subscribe(
	eventType string,
	handler models.EventHandler,
) (models.SubscriptionID, error) {
	if handler == nil {
		return 0, fmt.Errorf("eventbus: handler must not be nil")
	}

	topic := bus.topic(eventType)
	id := models.SubscriptionID(bus.subIDCounter.Add(1))

	bus.mu.Lock()
	defer bus.mu.Unlock()

	state, exists := bus.topics[topic]

	// The first subscriber on a topic starts a consumer loop that
	// re-subscribes on transport disconnects.
	if !exists {
		ctx, cancel := context.WithCancel(bus.rootCtx)

		state = &topicState{
			cancel: cancel,
		}
		bus.topics[topic] = state

		bus.wg.Add(1)
		go bus.consumeWithRetry(ctx, topic)
	}

	state.subs = append(state.subs, subscription{
		id:      id,
		handler: handler,
	})

	return id, nil
}

func (bus *eventBus) Unsubscribe(eventType string, id models.SubscriptionID) {
	topic := bus.topic(eventType)

	bus.mu.Lock()
	defer bus.mu.Unlock()

	state, ok := bus.topics[topic]
	if !ok {
		return
	}

	subs := state.subs
	for i, sub := range subs {
		if sub.id == id {
			state.subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}

	// Last handler gone, stop the consumer.
	if len(state.subs) == 0 {
		state.cancel()
		delete(bus.topics, topic)
	}
}

func (bus *eventBus) dispatch(
	ctx context.Context,
	topic string,
	msgs <-chan *models.Message,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var event models.Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				bus.logger.Error(
					"failed to unmarshal event",
					err,
					watermill.LogFields{
						"topic":      topic,
						"message_id": msg.UUID,
					},
				)
				continue
			}

			bus.mu.RLock()
			state := bus.topics[topic]
			subs := append([]subscription(nil), state.subs...)
			bus.mu.RUnlock()

			for _, sub := range subs {
				bus.handlerSem <- struct{}{}
				bus.wg.Add(1)

				go bus.runHandler(ctx, sub.handler, event)
			}
		}
	}
}

func (bus *eventBus) consumeWithRetry(ctx context.Context, topic string) {
	defer bus.wg.Done()

	const (
		baseBackoff = 500 * time.Millisecond
		maxBackoff  = 30 * time.Second
	)
	backoff := baseBackoff

	for {
		msgs, err := bus.pubsub.Subscribe(ctx, topic)
		if err != nil {
			// Jitter spreads out retries when many consumers reconnect at once.
			jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
			wait := backoff + jitter

			bus.logger.Error(
				"failed to subscribe to topic, will retry",
				err,
				watermill.LogFields{"topic": topic, "retry_in_ms": wait.Milliseconds()},
			)

			select {
			case <-time.After(wait):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			case <-ctx.Done():
				return
			}
		}

		backoff = baseBackoff

		bus.logger.Debug(
			"Starting consuming",
			watermill.LogFields{"topic": topic},
		)

		bus.dispatch(ctx, topic, msgs)

		bus.logger.Debug(
			"Consuming done",
			watermill.LogFields{"topic": topic},
		)

		select {
		case <-ctx.Done():
			return
		default:
		}

		// Small delay to avoid tight restart loops when the transport
		// closes the channel immediately.
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}

func (bus *eventBus) runHandler(
	ctx context.Context,
	handler models.EventHandler,
	event models.Event,
) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error(
				"event handler panicked",
				fmt.Errorf("panic: %v", r),
				watermill.LogFields{
					"event_type": event.Type,
					"event_id":   event.ID,
				},
			)
		}
		<-bus.handlerSem
		bus.wg.Done()
	}()

	if err := handler(ctx, event); err != nil {
		bus.logger.Error(
			"event handler error",
			err,
			watermill.LogFields{
				"event_type": event.Type,
				"event_id":   event.ID,
			},
		)
	}
}

func (bus *eventBus) Close() error {
	bus.cancel()

	// Wait for consumers and in-flight handlers before closing the transport.
	bus.wg.Wait()

	return bus.pubsub.Close()
}
