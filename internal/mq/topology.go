package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRequests Exchange = "grantflow.requests"
	ExchangeDLQ      Exchange = "grantflow.dlq"
)

// Queues — имена очередей.
const (
	QueueRequestsAudit Queue = "requests.audit"
	QueueDLQRequests   Queue = "dlq.requests"
)

// Routing keys.
const (
	RoutingKeyInitiated   RoutingKey = "request.initiated"
	RoutingKeyCompleted   RoutingKey = "request.completed"
	RoutingKeyAllRequests RoutingKey = "request.#"
	RoutingKeyDLQRequests RoutingKey = "requests"
)

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeRequests, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// requests.audit — все события заявок; необработанные уходят в DLQ
		{QueueRequestsAudit, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQRequests),
		}},
		{QueueDLQRequests, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueRequestsAudit, RoutingKeyAllRequests, ExchangeRequests},
		{QueueDLQRequests, RoutingKeyDLQRequests, ExchangeDLQ},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Grantflow RabbitMQ Topology:

    grantflow.requests (topic)
    ├── requests.audit [routing: request.#]
    │       DLQ: dlq.requests
    └── <exclusive> [routing: request.*]
            Consumer: grantflow events watch

    grantflow.dlq (direct)
    └── dlq.requests [routing: requests]
            Manual processing
  `
}
