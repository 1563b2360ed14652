package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// Handler receives change events that survived decoding and filtering.
type Handler func(ctx context.Context, ev ChangeEvent) error

type Consumer struct {
	reader *kafka.Reader
	filter Filter
}

func NewConsumer(brokers []string, topic, groupID string, filter Filter) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, filter: filter}
}

func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Feed] Error reading message: %v", err)
				continue
			}

			var ev ChangeEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				log.Printf("[Feed] Dropping undecodable event: %v", err)
				continue
			}
			if !c.filter.Matches(ev) {
				continue
			}

			if err := handler(ctx, ev); err != nil {
				log.Printf("[Feed] Error handling event: %v", err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
