// Grantflow CLI — инструмент командной строки для заявок на членство
// и прямого вызова команд backend'ов через HTTP API.
//
// Использование:
//
//	grantflow [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	request   Заявки: add, status, verify
//	command   Команды backend'ов: list, exec
//	instance  Инстансы backend'ов: list, clear-cache
//	events    События заявок из RabbitMQ: watch
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Grantflow/internal/cli"
	"github.com/shaiso/Grantflow/internal/mq"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var (
		apiURL     string
		amqpURL    string
		jsonOutput bool
	)

	rootCmd := &cobra.Command{
		Use:           "grantflow",
		Short:         "Grantflow CLI — project membership requests",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultAPI := "http://localhost:8080"
	if v := os.Getenv("GRANTFLOW_API_URL"); v != "" {
		defaultAPI = v
	}
	defaultAMQP := mq.DefaultURL()
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		defaultAMQP = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultAPI, "API server URL")
	rootCmd.PersistentFlags().StringVar(&amqpURL, "amqp-url", defaultAMQP, "RabbitMQ URL for events")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	// Логи consumer'а — только предупреждения, в stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	rootCmd.AddCommand(
		cli.NewRequestCmd(clientFn, outputFn),
		cli.NewCommandCmd(clientFn, outputFn),
		cli.NewInstanceCmd(clientFn, outputFn),
		cli.NewEventsCmd(func() string { return amqpURL }, outputFn, logger),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
