package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/resilience"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeName   = "howhappy"
	attemptsHeader = "x-attempts"
)

type RabbitMQ struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	url         string
	maxAttempts int
}

// New RabbitMQ client. Declares the exchange, both stage queues and
// their dead-letter companions; all durable.
func NewRabbitMQ(url string, maxAttempts int) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queues := []string{
		QueueTranscriptionRequest,
		QueueTranscriptionRequest + DeadSuffix,
		QueueAnalysisRequest,
		QueueAnalysisRequest + DeadSuffix,
	}
	for _, name := range queues {
		if _, err := ch.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		if err := ch.QueueBind(name, name, ExchangeName, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue %s: %w", name, err)
		}
	}

	logger.Info("RabbitMQ connected successfully")

	return &RabbitMQ{
		conn:        conn,
		channel:     ch,
		url:         url,
		maxAttempts: maxAttempts,
	}, nil
}

// Publish publishes a message to the queue and returns the job ID
// assigned to it.
func (r *RabbitMQ) Publish(queueName string, body []byte) (string, error) {
	return r.publish(queueName, body, 0)
}

func (r *RabbitMQ) publish(queueName string, body []byte, attempts int) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobID := uuid.New().String()

	// Broker hiccups on publish are common during restarts; retry with
	// backoff before giving up.
	err := resilience.RetryWithExponentialBackoff(ctx, resilience.DefaultRetryConfig(), func() error {
		return r.channel.PublishWithContext(
			ctx,
			ExchangeName, // exchange
			queueName,    // routing key
			false,        // mandatory
			false,        // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
				MessageId:    jobID,
				Timestamp:    time.Now(),
				Headers:      amqp.Table{attemptsHeader: int32(attempts)},
			},
		)
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Debug("Message published to queue",
		zap.String("queue", queueName),
		zap.String("job_id", jobID),
		zap.Int("size", len(body)))

	return jobID, nil
}

// PublishJob publishes a stage job payload and returns its job ID.
func (r *RabbitMQ) PublishJob(queueName string, job *JobPayload) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	return r.Publish(queueName, body)
}

// Subscribe consumes messages from the queue with the given prefetch and
// hands each body to handler. Delivery is at-least-once: a handler error
// on a retryable failure re-publishes the message with an incremented
// attempt count; once attempts are exhausted, or the failure is
// non-retryable, the message moves to the queue's dead-letter companion.
func (r *RabbitMQ) Subscribe(queueName string, prefetch int, handler func(context.Context, []byte) error) error {
	err := r.channel.Qos(
		prefetch, // prefetch count
		0,        // prefetch size
		false,    // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := r.channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Info("Starting to consume messages", zap.String("queue", queueName))

	for msg := range msgs {
		attempt := attemptsFromHeaders(msg.Headers) + 1
		logger.Debug("Received message",
			zap.String("queue", queueName),
			zap.String("job_id", msg.MessageId),
			zap.Int("attempt", attempt))

		err := handler(context.Background(), msg.Body)
		if err == nil {
			msg.Ack(false)
			continue
		}

		logger.Error("Failed to handle message",
			zap.String("queue", queueName),
			zap.String("job_id", msg.MessageId),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if apperr.IsRetryable(err) && attempt < r.maxAttempts {
			if _, pubErr := r.publish(queueName, msg.Body, attempt); pubErr != nil {
				logger.Error("Failed to requeue message", zap.Error(pubErr))
				// Fall back to broker redelivery
				msg.Nack(false, true)
				continue
			}
		} else {
			if _, pubErr := r.publish(queueName+DeadSuffix, msg.Body, attempt); pubErr != nil {
				logger.Error("Failed to dead-letter message", zap.Error(pubErr))
				msg.Nack(false, true)
				continue
			}
			logger.Warn("Message dead-lettered",
				zap.String("queue", queueName),
				zap.String("job_id", msg.MessageId),
				zap.Int("attempts", attempt))
		}

		msg.Ack(false)
	}

	return nil
}

// attemptsFromHeaders reads the delivery attempt counter, tolerating the
// integer widths AMQP clients encode.
func attemptsFromHeaders(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Close RabbitMQ connection
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
