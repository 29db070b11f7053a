package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/telemetry-store/internal/store"
	"procodus.dev/telemetry-store/pkg/generator"
	"procodus.dev/telemetry-store/pkg/metrics"
	"procodus.dev/telemetry-store/pkg/mq"
)

// Consumer drains telemetry submissions from RabbitMQ and appends them
// to the record store through the same write path as the HTTP endpoint.
type Consumer struct {
	logger    *slog.Logger
	store     *store.Store
	mqClient  mq.ClientInterface
	queueName string
	metrics   *metrics.ServerMetrics
	done      chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger      *slog.Logger
	Store       *store.Store
	RabbitMQURL string
	QueueName   string
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.ServerMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations.
	MQMetrics *metrics.MQMetrics
	// Client overrides the dialed MQ client. Used in tests.
	Client mq.ClientInterface
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	client := cfg.Client
	if client == nil {
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("rabbitmq URL cannot be empty")
		}

		mqClient := mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger)
		if cfg.MQMetrics != nil {
			mqClient.SetMetrics(cfg.MQMetrics)
		}
		client = mqClient
	}

	return &Consumer{
		logger:    cfg.Logger,
		store:     cfg.Store,
		mqClient:  client,
		queueName: cfg.QueueName,
		metrics:   cfg.Metrics,
		done:      make(chan struct{}),
	}, nil
}

// Start begins consuming messages from RabbitMQ.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting consumer")

	// Wait for MQ client to be ready
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started, waiting for messages")

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming messages from the deliveries channel.
func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single message delivery. Undecodable and
// invalid submissions are acked and dropped so they are not redelivered
// forever; storage faults are nacked for redelivery.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var submission generator.Submission
	if err := json.Unmarshal(delivery.Body, &submission); err != nil {
		c.logger.Error("failed to unmarshal submission", "error", err)
		c.countMessage("rejected")
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	record, err := c.store.Insert(ctx, submission.Project, submission.Data)
	if err != nil {
		if errors.Is(err, store.ErrEmptyPayload) {
			c.logger.Warn("dropping submission with empty payload",
				"project", submission.Project,
			)
			c.countMessage("rejected")
			if ackErr := delivery.Ack(false); ackErr != nil {
				c.logger.Error("failed to ack message", "error", ackErr)
			}
			return
		}

		c.logger.Error("failed to store submission",
			"project", submission.Project,
			"error", err,
		)
		c.countMessage("error")
		// Nack the message so it can be reprocessed
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
		return
	}

	c.countMessage("success")
	if c.metrics != nil {
		c.metrics.RecordsStored.WithLabelValues("queue").Inc()
	}

	c.logger.Debug("submission stored",
		"id", record.ID,
		"project", record.Project,
	)
}

func (c *Consumer) countMessage(status string) {
	if c.metrics != nil {
		c.metrics.ConsumerMessagesTotal.WithLabelValues(c.queueName, status).Inc()
	}
}

// Stop stops the consumer and closes the MQ client.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	// Wait for message processing to complete
	<-c.done

	c.logger.Info("consumer stopped")
	return nil
}
