package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaiso/Grantflow/internal/mq"
)

// NewEventsCmd создаёт группу команд для событий заявок.
func NewEventsCmd(amqpURL func() string, outputFn func() *Output, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Observe request lifecycle events",
	}

	var completedOnly bool

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print request events from RabbitMQ until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			conn, err := mq.NewConnection(amqpURL(), "grantflow-cli", logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			bindings := []mq.RoutingKey{mq.RoutingKeyAllRequests}
			if completedOnly {
				bindings = []mq.RoutingKey{mq.RoutingKeyCompleted}
			}

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Bindings: bindings,
				Handler:  printEvent(out),
				Prefetch: 16,
			})

			err = consumer.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	watch.Flags().BoolVar(&completedOnly, "completed", false, "Only request.completed events")

	cmd.AddCommand(watch)
	return cmd
}

// printEvent выводит событие строкой таблицы или JSON.
func printEvent(out *Output) mq.Handler {
	return func(_ context.Context, d *mq.Delivery) error {
		if out.JSONMode() {
			out.JSON(d.Message)
			return nil
		}

		switch d.Message.Type {
		case mq.MessageTypeRequestInitiated:
			p, err := mq.ParsePayload[mq.RequestInitiatedPayload](&d.Message)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("%s initiated  request=%s job=%s %s/%s role=%s",
				d.Message.Timestamp.Format("15:04:05"), p.RequestID, p.JobID, p.Project, p.User, p.Role))
		case mq.MessageTypeRequestCompleted:
			p, err := mq.ParsePayload[mq.RequestCompletedPayload](&d.Message)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("%s completed  request=%s job=%s successful=%t %s",
				d.Message.Timestamp.Format("15:04:05"), p.RequestID, p.JobID, p.Successful, p.Message))
		default:
			out.Success(fmt.Sprintf("%s %s  routing_key=%s",
				d.Message.Timestamp.Format("15:04:05"), d.Message.Type, d.RoutingKey))
		}
		return nil
	}
}
