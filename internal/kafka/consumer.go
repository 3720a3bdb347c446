package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/Leerm14/restaurant-back-end/internal/models"
)

type Consumer struct {
	reader *kafka.Reader
}

// NewGatewayConsumer reads asynchronous confirm/fail messages published by
// the external payment gateway.
func NewGatewayConsumer(brokers []string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    TopicGatewayEvents,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start consumes gateway events until the context is cancelled. Malformed
// messages are logged and skipped; handler errors do not stop the loop.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, event models.GatewayEvent) error) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("gateway consumer: read error: %v", err)
			continue
		}

		var event models.GatewayEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("gateway consumer: malformed message: %v", err)
			continue
		}

		if err := handler(ctx, event); err != nil {
			log.Printf("gateway consumer: handler error for order %s: %v", event.OrderID, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
