package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/storefront-orders/internal/domain/order"
)

// Producer publishes change events to the feed. Events for the same order
// share a key so they stay ordered per order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, key string, ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

// PublishOrderChange implements store.ChangePublisher.
func (p *Producer) PublishOrderChange(ctx context.Context, o *order.Order) error {
	ev, err := NewOrderUpdate(o)
	if err != nil {
		return err
	}
	return p.Publish(ctx, o.ID, ev)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
