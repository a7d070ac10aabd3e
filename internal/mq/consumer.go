package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Grantflow/internal/telemetry"
)

// Handler — функция обработки сообщения.
// Ошибка — nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенный конверт.
	Message Message

	// RoutingKey — ключ, с которым сообщение опубликовано.
	RoutingKey string
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди. Пустое — временная exclusive-очередь,
	// привязанная к ExchangeRequests ключами Bindings.
	Queue Queue

	// Bindings — routing keys временной очереди (default: request.#).
	Bindings []RoutingKey

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// Consumer читает события из очереди RabbitMQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	cfg      ConsumerConfig
	prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if cfg.Queue == "" && len(cfg.Bindings) == 0 {
		cfg.Bindings = []RoutingKey{RoutingKeyAllRequests}
	}

	return &Consumer{
		conn:     conn,
		logger:   telemetry.OrDefault(logger),
		cfg:      cfg,
		prefetch: prefetch,
	}
}

// Run читает сообщения до окончания ctx, переживая переподключения.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, queue, err := c.setup(ctx)
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.cfg.Queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", queue)
			if err := c.process(ctx, deliveries); ctx.Err() != nil {
				return ctx.Err()
			} else if err != nil {
				c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", queue)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// setup объявляет временную очередь (если нужно) и начинает потребление.
func (c *Consumer) setup(ctx context.Context) (<-chan amqp.Delivery, string, error) {
	var (
		deliveries <-chan amqp.Delivery
		queue      = string(c.cfg.Queue)
	)

	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		if queue == "" {
			q, err := ch.QueueDeclare("", false, true, true, false, nil)
			if err != nil {
				return fmt.Errorf("declare exclusive queue: %w", err)
			}
			queue = q.Name
			for _, key := range c.cfg.Bindings {
				if err := ch.QueueBind(queue, string(key), string(ExchangeRequests), false, nil); err != nil {
					return fmt.Errorf("bind %s: %w", key, err)
				}
			}
		}

		var err error
		deliveries, err = ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}
		return nil
	})

	return deliveries, queue, err
}

// process обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

// handle обрабатывает одно сообщение.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		// Некорректное сообщение — в DLQ
		raw.Nack(false, false)
		return
	}

	if err := c.cfg.Handler(ctx, &Delivery{Message: msg, RoutingKey: raw.RoutingKey}); err != nil {
		c.logger.Error("handler failed", "message_id", msg.ID, "type", msg.Type, "error", err)
		raw.Nack(false, !raw.Redelivered)
		return
	}

	raw.Ack(false)
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после json.Unmarshal — map[string]any
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
