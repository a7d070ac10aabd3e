// Grantflow API — HTTP сервер заявок на членство в проектах.
//
// Заявка запускает AWX workflow и возвращает подписанный request id;
// статус при каждом опросе заново согласуется по AWX и очереди UiPath.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Grantflow/internal/api"
	"github.com/shaiso/Grantflow/internal/awx"
	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/config"
	"github.com/shaiso/Grantflow/internal/jira"
	"github.com/shaiso/Grantflow/internal/membership"
	"github.com/shaiso/Grantflow/internal/mq"
	"github.com/shaiso/Grantflow/internal/openshift"
	"github.com/shaiso/Grantflow/internal/repo"
	"github.com/shaiso/Grantflow/internal/telemetry"
	"github.com/shaiso/Grantflow/internal/token"
	"github.com/shaiso/Grantflow/internal/uipath"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("grantflow-api")
	logger.Info("starting grantflow-api")

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, "grantflow-api", cfg.OtelEndpoint, cfg.OtelEnabled)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// Backend-инстансы: файл, затем строки БД
	backends, err := config.LoadBackends(cfg.InstancesFile)
	if err != nil {
		return err
	}
	if cfg.DBURL != "" {
		pool, err := repo.NewPool(ctx, repo.PoolConfig{DSN: cfg.DBURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if cfg.DBInitSchema {
			if err := repo.EnsureSchema(ctx, pool); err != nil {
				return err
			}
		}
		n, err := repo.NewInstanceRepo(pool).LoadInto(ctx, backends)
		if err != nil {
			return fmt.Errorf("load instances from database: %w", err)
		}
		logger.Info("backend instances loaded from database", "count", n)
	}
	logger.Info("backend families configured", "families", backends.FamilyNames())

	// Фабрики клиентов и сервисы
	awxFactory := awx.NewFactory(backends.Family(config.FamilyAWX), logger)
	uipathFactory := uipath.NewFactory(backends.Family(config.FamilyUiPath), logger)
	jiraFactory := jira.NewFactory(backends.Family(config.FamilyJira), logger)
	openshiftFactory := openshift.NewFactory(backends.Family(config.FamilyOpenShift), logger)

	registry := command.NewRegistry()
	registry.Register(awx.NewService(awxFactory, logger))
	registry.Register(uipath.NewService(uipathFactory, logger))
	registry.Register(jira.NewService(jiraFactory, logger))
	registry.Register(openshift.NewService(openshiftFactory, logger))
	logger.Info("commands registered", "services", registry.Services())

	workers := command.NewPool(cfg.ExecutorPoolSize, cfg.ExecutorQueueSize, logger)
	defer workers.Close()

	executor := command.NewExecutor(command.ExecutorConfig{
		BaseDelay: cfg.ExecutorBaseDelay,
		MaxDelay:  cfg.ExecutorMaxDelay,
		Pool:      workers,
		Logger:    logger,
	})
	defaults := &command.Context{
		Timeout:       cfg.CommandTimeout,
		RetryAttempts: cfg.CommandRetryAttempts,
	}
	dispatcher := command.NewDispatcher(registry, executor, defaults, logger)

	// Request token
	secret, err := cfg.Secret()
	if err != nil {
		return err
	}
	tokens, err := token.NewService(token.Config{Secret: secret, Prefix: cfg.TokenPrefix})
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	// События заявок (опционально)
	var publisher membership.EventPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(cfg.RabbitMQURL, "grantflow-api", logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return err
		}
		publisher = mq.NewPublisher(conn, logger)
		logger.Info("request events enabled", "topology", mq.TopologyInfo())
	}

	memberships := membership.NewService(membership.Config{
		Runner:         dispatcher,
		Tokens:         tokens,
		TokenTTL:       cfg.TokenTTL,
		AWXInstance:    cfg.AWXInstance,
		AWXTemplateID:  cfg.AWXWorkflowTemplateID,
		UiPathInstance: cfg.UiPathInstance,
		UiPathQueue:    cfg.UiPathQueueName,
		CommandContext: defaults,
		Publisher:      publisher,
		Logger:         logger,
	})

	handler := api.NewHandler(api.Config{
		Memberships: memberships,
		Commands:    dispatcher,
		Families:    []api.InstanceFamily{awxFactory, uipathFactory, jiraFactory, openshiftFactory},
		Logger:      logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Ожидаем сигнал завершения
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}
