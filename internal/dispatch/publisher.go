package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Job is one OCR task handed to the offline processing pipeline after an
// image has been stored and recorded.
type Job struct {
	TaskID       string    `json:"task_id"`
	ImageID      int64     `json:"image_id"`
	WaterMeterID int64     `json:"water_meter_id"`
	ImageURL     string    `json:"image_url"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Sender publishes one job to the task queue.
type Sender interface {
	Publish(ctx context.Context, job Job) error
}

// Publisher is the RabbitMQ-backed Sender.
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// NewPublisher dials RabbitMQ and declares the task exchange.
func NewPublisher(url, exchange, routingKey string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:       conn,
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// Publish sends one task event. Messages are persistent so queued tasks
// survive a broker restart.
func (p *Publisher) Publish(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	p.logger.Debug("published ocr task",
		zap.String("task_id", job.TaskID),
		zap.Int64("image_id", job.ImageID),
	)
	return nil
}

// Close closes the publisher channel and connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
