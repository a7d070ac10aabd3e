// Package telemetry обеспечивает наблюдаемость Grantflow.
//
// Включает:
//   - logging.go — structured logging через slog, логгер в context
//   - metrics.go — Prometheus метрики команд, кеша клиентов, token и событий
//   - tracing.go — OpenTelemetry tracing (opt-in через OTLP endpoint)
//
// Ключи атрибутов логов — snake_case: service, command, instance, job_id.
// Метрики экспортируются на /metrics с префиксом grantflow_.
package telemetry
