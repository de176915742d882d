// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// TypeOrderFinalized is the event_type header of OrderFinalized messages.
const TypeOrderFinalized = "order.finalized"

// OrderFinalizedItem is one line of a finalized order.
type OrderFinalizedItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

// OrderFinalized is emitted once a checkout session becomes an order.
type OrderFinalized struct {
	OrderID       string               `json:"orderId"`
	CheckoutID    string               `json:"checkoutId"`
	UserID        string               `json:"userId"`
	Items         []OrderFinalizedItem `json:"items"`
	TotalPrice    decimal.Decimal      `json:"totalPrice"`
	Currency      string               `json:"currency"`
	InvoiceNumber string               `json:"invoiceNumber,omitempty"`
	FinalizedAt   time.Time            `json:"finalizedAt"`
}

// NewOrderFinalized builds the event from a stored order.
func NewOrderFinalized(order *model.Order, at time.Time) OrderFinalized {
	evt := OrderFinalized{
		OrderID:       order.ID.String(),
		CheckoutID:    order.CheckoutID.String(),
		UserID:        order.UserID,
		Items:         make([]OrderFinalizedItem, 0, len(order.Items)),
		TotalPrice:    order.TotalPrice,
		Currency:      order.Currency,
		InvoiceNumber: order.InvoiceNumber,
		FinalizedAt:   at.UTC(),
	}
	for _, it := range order.Items {
		evt.Items = append(evt.Items, OrderFinalizedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Size:      it.Size,
			Color:     it.Color,
		})
	}
	return evt
}

// Publisher sends domain events.
type Publisher interface {
	PublishOrderFinalized(ctx context.Context, evt OrderFinalized) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaPublisher writes events to a single topic keyed by order id.
type kafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger zerolog.Logger) *kafkaPublisher {
	return &kafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "kafka-publisher").Str("topic", topic).Logger(),
	}
}

func (p *kafkaPublisher) PublishOrderFinalized(ctx context.Context, evt OrderFinalized) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", TypeOrderFinalized, err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeOrderFinalized)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).Str("order_id", evt.OrderID).Msg("failed to publish event")
		return fmt.Errorf("failed to publish %s event: %w", TypeOrderFinalized, err)
	}

	p.logger.Debug().Str("order_id", evt.OrderID).Msg("event published")
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// noopPublisher drops events. Used when Kafka is disabled.
type noopPublisher struct {
	logger zerolog.Logger
}

// NewNoopPublisher returns a publisher that only logs.
func NewNoopPublisher(logger zerolog.Logger) Publisher {
	return &noopPublisher{logger: logger.With().Str("component", "noop-publisher").Logger()}
}

func (p *noopPublisher) PublishOrderFinalized(_ context.Context, evt OrderFinalized) error {
	p.logger.Debug().Str("order_id", evt.OrderID).Msg("event publishing disabled, dropping event")
	return nil
}

func (p *noopPublisher) Close() error { return nil }
