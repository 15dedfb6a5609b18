package notify

import (
	"context"
	"digital-shop/internal/model"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notification messages for the mailer, keyed by
// order id so one order's messages stay on one partition.
type KafkaNotifier struct {
	writer  messageWriter
	siteURL string
}

func NewKafkaNotifier(brokers []string, topic, siteURL string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		siteURL: siteURL,
	}
}

func (n *KafkaNotifier) SendOrderConfirmation(ctx context.Context, order *model.Order) error {
	return n.publish(ctx, confirmationMessage(order))
}

func (n *KafkaNotifier) SendDownloadLink(ctx context.Context, order *model.Order, item *model.OrderItem) error {
	return n.publish(ctx, downloadLinkMessage(n.siteURL, order, item))
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.OrderID),
		Value: data,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Kind, err)
	}
	return nil
}
