package rabbitmq_consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"ollama-catalog/pkg/rabbitmq/rabbitmq_common"
)

// MessageHandler processes one delivery. ctx is the context passed to
// StartConsuming. A nil err with ack=false rejects the message without
// requeueing it.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) (ack bool, requeueOnError bool, err error)

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	rabbitmq_common.Config

	QueueName       string // may be empty when DeclareQueue lets the server name it
	DeclareQueue    bool
	DurableQueue    bool
	ExclusiveQueue  bool
	AutoDeleteQueue bool
	QueueArgs       amqp.Table

	// Binding is skipped when ExchangeNameForBind is empty.
	ExchangeNameForBind    string
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	ExchangeArgsForBind    amqp.Table
	RoutingKeyForBind      string
	BindingArgs            amqp.Table

	PrefetchCount int // 0 for no limit
	PrefetchSize  int
	QosGlobal     bool

	ConsumerTag       string
	ExclusiveConsumer bool

	// MaxInFlight bounds concurrently running handlers; 0 means one.
	MaxInFlight int
}

// Validate checks the settings without touching the network.
func (cfg *ConsumerConfig) Validate() error {
	if err := cfg.Config.Validate(); err != nil {
		return fmt.Errorf("invalid base config: %w", err)
	}
	if !cfg.DeclareQueue && cfg.QueueName == "" {
		return fmt.Errorf("consumer: queue name is required if DeclareQueue is false")
	}
	if cfg.ExchangeNameForBind != "" && cfg.ExchangeTypeForBind == "" && cfg.DeclareExchangeForBind {
		return fmt.Errorf("consumer: exchange type is required if declaring an exchange for binding")
	}
	if cfg.MaxInFlight < 0 {
		return fmt.Errorf("consumer: MaxInFlight cannot be negative")
	}
	return nil
}

type Consumer struct {
	config     ConsumerConfig
	handler    MessageHandler
	connection *amqp.Connection
	channel    *amqp.Channel

	actualQueueName string // server-generated when QueueName is empty

	wg sync.WaitGroup
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("consumer: message handler is required")
	}

	c := &Consumer{
		config:  cfg,
		handler: handler,
	}

	if err := c.connectAndSetup(); err != nil {
		return nil, fmt.Errorf("consumer: initial connection and setup failed: %w", err)
	}

	return c, nil
}

func (c *Consumer) connectAndSetup() error {
	slog.Info("Consumer: connecting", "broker", c.config.Redacted())
	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	c.connection = conn

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	c.channel = ch

	fail := func(err error) error {
		_ = c.channel.Close()
		_ = c.connection.Close()
		return err
	}

	// QoS must be set before Consume.
	if c.config.PrefetchCount > 0 || c.config.PrefetchSize > 0 {
		if err := c.channel.Qos(c.config.PrefetchCount, c.config.PrefetchSize, c.config.QosGlobal); err != nil {
			return fail(fmt.Errorf("failed to set QoS: %w", err))
		}
	}

	c.actualQueueName = c.config.QueueName
	if c.config.DeclareQueue {
		q, err := c.channel.QueueDeclare(
			c.config.QueueName,
			c.config.DurableQueue,
			c.config.AutoDeleteQueue,
			c.config.ExclusiveQueue,
			false, // no-wait
			c.config.QueueArgs,
		)
		if err != nil {
			return fail(fmt.Errorf("failed to declare queue '%s': %w", c.config.QueueName, err))
		}
		c.actualQueueName = q.Name
	}

	if c.config.DeclareExchangeForBind {
		err := c.channel.ExchangeDeclare(
			c.config.ExchangeNameForBind,
			c.config.ExchangeTypeForBind,
			c.config.DurableExchangeForBind,
			false, // auto-deleted
			false, // internal
			false, // no-wait
			c.config.ExchangeArgsForBind,
		)
		if err != nil {
			return fail(fmt.Errorf("failed to declare exchange '%s' for binding: %w", c.config.ExchangeNameForBind, err))
		}
	}

	if c.config.ExchangeNameForBind != "" {
		err := c.channel.QueueBind(
			c.actualQueueName,
			c.config.RoutingKeyForBind,
			c.config.ExchangeNameForBind,
			false, // no-wait
			c.config.BindingArgs,
		)
		if err != nil {
			return fail(fmt.Errorf("failed to bind queue '%s' to exchange '%s': %w", c.actualQueueName, c.config.ExchangeNameForBind, err))
		}
	}

	slog.Info("Consumer: setup complete", "queue", c.actualQueueName, "exchange", c.config.ExchangeNameForBind, "routing_key", c.config.RoutingKeyForBind)
	return nil
}

// StartConsuming blocks until ctx is cancelled (nil error) or the broker
// closes the connection.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.channel == nil || c.connection == nil || c.connection.IsClosed() {
		return fmt.Errorf("consumer: not connected. Please create a new consumer or ensure connection is stable")
	}

	msgs, err := c.channel.Consume(
		c.actualQueueName,
		c.config.ConsumerTag,
		false, // auto-ack
		c.config.ExclusiveConsumer,
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consumer: failed to register a consumer on queue '%s': %w", c.actualQueueName, err)
	}

	slog.Info("Consumer: waiting for messages", "queue", c.actualQueueName)

	slots := make(chan struct{}, max(c.config.MaxInFlight, 1))
	go func() {
		for {
			// Prefer shutdown over picking up another delivery.
			select {
			case <-ctx.Done():
				return
			default:
			}

			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					slog.Warn("Consumer: deliveries channel closed", "queue", c.actualQueueName)
					return
				}
				select {
				case slots <- struct{}{}:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
				c.wg.Add(1)
				go func(delivery amqp.Delivery) {
					defer func() {
						<-slots
						c.wg.Done()
					}()
					c.dispatch(ctx, delivery)
				}(d)
			}
		}
	}()

	notifyClose := c.connection.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case <-ctx.Done():
		slog.Info("Consumer: context cancelled, stopping", "queue", c.actualQueueName)
		return nil
	case err := <-notifyClose:
		slog.Error("Consumer: connection closed", "queue", c.actualQueueName, "error", err)
		return err
	}
}

func (c *Consumer) dispatch(ctx context.Context, delivery amqp.Delivery) {
	ack, requeueOnError, err := c.handler(ctx, delivery)
	switch {
	case err != nil:
		slog.Warn("Consumer: handler failed", "tag", delivery.DeliveryTag, "requeue", requeueOnError, "error", err)
		if nackErr := delivery.Nack(false, requeueOnError); nackErr != nil {
			slog.Error("Consumer: nack failed", "tag", delivery.DeliveryTag, "error", nackErr)
		}
	case ack:
		if ackErr := delivery.Ack(false); ackErr != nil {
			slog.Error("Consumer: ack failed", "tag", delivery.DeliveryTag, "error", ackErr)
		}
	default:
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			slog.Error("Consumer: nack failed", "tag", delivery.DeliveryTag, "error", nackErr)
		}
	}
}

// Close waits for running handlers and then closes the channel and the
// connection.
func (c *Consumer) Close() error {
	c.wg.Wait()

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			slog.Warn("Consumer: error closing channel", "error", err)
			firstErr = err
		}
		c.channel = nil
	}
	if c.connection != nil {
		if err := c.connection.Close(); err != nil {
			slog.Warn("Consumer: error closing connection", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		c.connection = nil
	}
	slog.Info("Consumer: closed")
	return firstErr
}
