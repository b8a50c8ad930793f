package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ollama-catalog/internal/core/domain"
)

// Publisher is the part of rabbitmq_producer.Publisher this adapter uses.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// SweepEventsQueueAdapter implements port.CatalogEventsPort by publishing
// every sweep report as JSON.
type SweepEventsQueueAdapter struct {
	producer   Publisher
	routingKey string
}

func NewSweepEventsQueueAdapter(producer Publisher, routingKey string) (*SweepEventsQueueAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("routingKey cannot be empty")
	}
	return &SweepEventsQueueAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

func (a *SweepEventsQueueAdapter) PublishSweep(ctx context.Context, report domain.SweepReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep report %s: %w", report.ID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    report.ID,
		Type:         string(report.State),
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("SweepEventsQueue: publishing sweep report", "sweep", report.ID, "state", report.State, "routing_key", a.routingKey)
	return a.producer.Publish(publishCtx, a.routingKey, msg)
}
