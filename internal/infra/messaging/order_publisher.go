package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/usecase"

	"github.com/segmentio/kafka-go"
)

const (
	EventTypeOrderPlaced        = "order.placed"
	EventTypeOrderStatusChanged = "order.status_changed"
)

// Kafkaに流すメッセージ本体
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 注文イベントをKafkaに送る
type KafkaOrderPublisher struct {
	w messageWriter
}

func NewKafkaOrderPublisher(cfg config.KafkaConfig) *KafkaOrderPublisher {
	return &KafkaOrderPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.OrderTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *KafkaOrderPublisher) PublishOrderPlaced(ctx context.Context, e usecase.OrderPlacedEvent) error {
	msg, err := newMessage(e.OrderID, EventTypeOrderPlaced, e, e.OccurredAt)
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

func (p *KafkaOrderPublisher) PublishOrderStatusChanged(ctx context.Context, e usecase.OrderStatusChangedEvent) error {
	msg, err := newMessage(e.OrderID, EventTypeOrderStatusChanged, e, e.OccurredAt)
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

func (p *KafkaOrderPublisher) write(ctx context.Context, msg kafka.Message) error {
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", string(msg.Key), err)
	}
	return nil
}

func (p *KafkaOrderPublisher) Close() error {
	return p.w.Close()
}

// 同じ注文のイベントは同じパーティションに入るようにキーを固定
func newMessage(orderID int64, eventType string, payload interface{}, at time.Time) (kafka.Message, error) {
	data, err := json.Marshal(envelope{Type: eventType, Payload: payload})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(fmt.Sprintf("ORDER#%d", orderID)),
		Value: data,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}, nil
}

// KAFKA_BROKERSが空のとき用
type NopOrderPublisher struct{}

func (NopOrderPublisher) PublishOrderPlaced(context.Context, usecase.OrderPlacedEvent) error {
	return nil
}

func (NopOrderPublisher) PublishOrderStatusChanged(context.Context, usecase.OrderStatusChangedEvent) error {
	return nil
}

func (NopOrderPublisher) Close() error { return nil }
