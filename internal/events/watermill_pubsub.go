package events

import (
	"context"
	"maps"

	"github.com/GoBucketStore/go-bucket-store/models"
	"github.com/ThreeDotsLabs/watermill/message"
)

// watermillPubSub bridges a Watermill publisher/subscriber pair to the
// models.PubSub contract. The event bus only speaks models.Message, so any
// Watermill transport can carry the storage change stream.
type watermillPubSub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

// NewWatermillPubSub wraps a Watermill-compatible publisher and subscriber
// as a models.PubSub.
func NewWatermillPubSub(publisher message.Publisher, subscriber message.Subscriber) models.PubSub {
	return &watermillPubSub{
		publisher:  publisher,
		subscriber: subscriber,
	}
}

func (w *watermillPubSub) Publish(ctx context.Context, topic string, msg *models.Message) error {
	watermillMsg := message.NewMessage(
		msg.UUID,
		msg.Payload,
	)

	for key, value := range msg.Metadata {
		watermillMsg.Metadata.Set(key, value)
	}

	return w.publisher.Publish(topic, watermillMsg)
}

// Subscribe converts the transport's message stream into models.Message
// values. Messages are acked once the bus has taken delivery and nacked if
// the subscription context ends first.
func (w *watermillPubSub) Subscribe(ctx context.Context, topic string) (<-chan *models.Message, error) {
	watermillCh, err := w.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	domainCh := make(chan *models.Message)

	go func() {
		defer close(domainCh)

		for watermillMsg := range watermillCh {
			metadata := make(map[string]string)
			maps.Copy(metadata, watermillMsg.Metadata)

			domainMsg := &models.Message{
				UUID:     watermillMsg.UUID,
				Payload:  watermillMsg.Payload,
				Metadata: metadata,
			}

			select {
			case domainCh <- domainMsg:
				watermillMsg.Ack()
			case <-ctx.Done():
				watermillMsg.Nack()
				return
			}
		}
	}()

	return domainCh, nil
}

// Close closes whichever side of the transport supports closing.
func (w *watermillPubSub) Close() error {
	var pubErr, subErr error

	if closer, ok := w.publisher.(interface{ Close() error }); ok {
		pubErr = closer.Close()
	}

	if closer, ok := w.subscriber.(interface{ Close() error }); ok {
		subErr = closer.Close()
	}

	if pubErr != nil {
		return pubErr
	}
	return subErr
}
