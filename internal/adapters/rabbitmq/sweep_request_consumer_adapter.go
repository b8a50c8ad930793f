package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"ollama-catalog/internal/core/domain"
	"ollama-catalog/internal/core/usecase"
	"ollama-catalog/pkg/rabbitmq/rabbitmq_consumer"
)

// SweepRunner runs one reconciliation sweep.
type SweepRunner interface {
	RunSweep(ctx context.Context, removeUnlisted bool) (domain.SweepReport, error)
}

// SweepRequestConsumerAdapter is an inbound adapter: it listens on the sweep
// request queue and runs a sweep per message.
type SweepRequestConsumerAdapter struct {
	consumer *rabbitmq_consumer.Consumer
	runner   SweepRunner
}

func NewSweepRequestConsumerAdapter(consumerCfg rabbitmq_consumer.ConsumerConfig, runner SweepRunner) (*SweepRequestConsumerAdapter, error) {
	if runner == nil {
		return nil, fmt.Errorf("sweep runner cannot be nil")
	}
	adapter := &SweepRequestConsumerAdapter{runner: runner}

	consumer, err := rabbitmq_consumer.NewConsumer(consumerCfg, adapter.messageHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for sweep requests: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

// messageHandler acks requests that reached a finished sweep or found one
// already running. A failed walk is requeued once and discarded when it
// fails again on redelivery.
func (a *SweepRequestConsumerAdapter) messageHandler(ctx context.Context, d amqp.Delivery) (ack bool, requeueOnError bool, err error) {
	var req domain.SweepRequest
	if len(d.Body) > 0 {
		if err := json.Unmarshal(d.Body, &req); err != nil {
			return false, false, fmt.Errorf("unmarshal sweep request: %w", err)
		}
	}

	slog.Info("SweepRequestConsumer: received sweep request", "tag", d.DeliveryTag, "remove_unlisted", req.RemoveUnlisted(), "redelivered", d.Redelivered)

	report, err := a.runner.RunSweep(ctx, req.RemoveUnlisted())
	switch {
	case errors.Is(err, usecase.ErrSweepInProgress):
		slog.Info("SweepRequestConsumer: sweep already running, dropping request", "tag", d.DeliveryTag)
		return true, false, nil
	case err == nil:
		return true, false, nil
	case report.State == domain.SweepDone:
		// The walk finished; only pruning failed. Another run would redo the same work.
		slog.Warn("SweepRequestConsumer: sweep finished with errors", "sweep", report.ID, "error", err)
		return true, false, nil
	case d.Redelivered:
		return false, false, err
	default:
		return false, true, err
	}
}

func (a *SweepRequestConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *SweepRequestConsumerAdapter) Close() error {
	return a.consumer.Close()
}
