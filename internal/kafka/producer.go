package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is the envelope written to every lifecycle topic.
type Event struct {
	Type      string      `json:"type"`
	EntityID  string      `json:"entity_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type Producer struct {
	bookings *kafka.Writer
	orders   *kafka.Writer
	payments *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		bookings: writer(TopicBookingEvents),
		orders:   writer(TopicOrderEvents),
		payments: writer(TopicPaymentEvents),
	}
}

func (p *Producer) publish(ctx context.Context, w *kafka.Writer, eventType, entityID string, payload interface{}) error {
	msg, err := json.Marshal(Event{
		Type:      eventType,
		EntityID:  entityID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entityID),
		Value: msg,
	})
}

// PublishBookingEvent streams a booking lifecycle event.
func (p *Producer) PublishBookingEvent(ctx context.Context, eventType, bookingID string, payload interface{}) error {
	return p.publish(ctx, p.bookings, eventType, bookingID, payload)
}

// PublishOrderEvent streams an order lifecycle event.
func (p *Producer) PublishOrderEvent(ctx context.Context, eventType, orderID string, payload interface{}) error {
	return p.publish(ctx, p.orders, eventType, orderID, payload)
}

// PublishPaymentEvent streams a payment lifecycle event.
func (p *Producer) PublishPaymentEvent(ctx context.Context, eventType, paymentID string, payload interface{}) error {
	return p.publish(ctx, p.payments, eventType, paymentID, payload)
}

func (p *Producer) Close() error {
	for _, w := range []*kafka.Writer{p.bookings, p.orders, p.payments} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
