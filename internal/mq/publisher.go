package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Grantflow/internal/telemetry"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRequestInitiated MessageType = "request.initiated"
	MessageTypeRequestCompleted MessageType = "request.completed"
)

// Message — конверт события.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RequestInitiatedPayload — заявка запущена.
type RequestInitiatedPayload struct {
	RequestID   string `json:"request_id"`
	JobID       string `json:"job_id"`
	Reference   string `json:"reference"`
	Project     string `json:"project"`
	User        string `json:"user"`
	Role        string `json:"role"`
	Environment string `json:"environment,omitempty"`
	Initiator   string `json:"initiator,omitempty"`
}

// RequestCompletedPayload — опрос статуса дал COMPLETED.
type RequestCompletedPayload struct {
	RequestID    string `json:"request_id"`
	JobID        string `json:"job_id"`
	Reference    string `json:"reference,omitempty"`
	Project      string `json:"project"`
	User         string `json:"user"`
	Successful   bool   `json:"successful"`
	Message      string `json:"message"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// Publisher публикует события заявок в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: telemetry.OrDefault(logger),
		now:    time.Now,
	}
}

// NewMessage собирает конверт с новым ID.
func NewMessage(msgType MessageType, payload any, ts time.Time) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: ts.UTC(),
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.EventsPublished.WithLabelValues(string(msg.Type), outcome).Inc()
	return err
}

// PublishRequestInitiated публикует request.initiated.
func (p *Publisher) PublishRequestInitiated(ctx context.Context, payload RequestInitiatedPayload) error {
	msg := NewMessage(MessageTypeRequestInitiated, payload, p.now())
	return p.Publish(ctx, ExchangeRequests, RoutingKeyInitiated, msg)
}

// PublishRequestCompleted публикует request.completed.
func (p *Publisher) PublishRequestCompleted(ctx context.Context, payload RequestCompletedPayload) error {
	msg := NewMessage(MessageTypeRequestCompleted, payload, p.now())
	return p.Publish(ctx, ExchangeRequests, RoutingKeyCompleted, msg)
}
