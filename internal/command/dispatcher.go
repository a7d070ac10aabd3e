package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Grantflow/internal/telemetry"
)

// Dispatcher — фасад вызова команд по имени.
type Dispatcher struct {
	registry *Registry
	executor *Executor
	defaults Context
	logger   *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
// defaults применяется, когда вызывающий не передал Context.
func NewDispatcher(registry *Registry, executor *Executor, defaults *Context, logger *slog.Logger) *Dispatcher {
	if defaults == nil {
		defaults = DefaultContext()
	}
	return &Dispatcher{
		registry: registry,
		executor: executor,
		defaults: *defaults.Clone(),
		logger:   telemetry.OrDefault(logger),
	}
}

// Registry возвращает реестр команд.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// ExecuteCommand находит команду и выполняет её синхронно.
// Незарегистрированная команда даёт Result с кодом COMMAND_NOT_FOUND.
func (d *Dispatcher) ExecuteCommand(ctx context.Context, service, name string, req any, cc *Context) *Result {
	cmd, ok := d.registry.GetCommand(service, name)
	if !ok {
		return d.notFound(service, name)
	}
	return d.executor.Execute(ctx, cmd, req, d.context(cc))
}

// ExecuteCommandAsync находит команду и отдаёт её в pool.
// Ошибка (*Error с кодом COMMAND_NOT_FOUND или POOL_REJECTED) означает,
// что задача не поставлена; Future при этом уже завершён.
func (d *Dispatcher) ExecuteCommandAsync(ctx context.Context, service, name string, req any, cc *Context) (*Future, error) {
	cmd, ok := d.registry.GetCommand(service, name)
	if !ok {
		return newFuture().fail(d.notFound(service, name))
	}
	return d.executor.ExecuteAsync(ctx, cmd, req, d.context(cc))
}

// context возвращает cc или копию defaults; нулевой Timeout берётся из defaults,
// отрицательный означает «без таймаута» и сохраняется.
func (d *Dispatcher) context(cc *Context) *Context {
	if cc == nil {
		return d.defaults.Clone()
	}
	if cc.Timeout == 0 {
		cc = cc.Clone()
		cc.Timeout = d.defaults.Timeout
	}
	return cc
}

func (d *Dispatcher) notFound(service, name string) *Result {
	now := time.Now()
	err := fmt.Errorf("%w: %s/%s", ErrCommandNotFound, service, name)
	d.logger.Warn("command not found", "service", service, "command", name)
	telemetry.CommandExecutions.WithLabelValues(service, name, CodeCommandNotFound).Inc()
	return failure(service, name, CodeCommandNotFound, err.Error(), now, now,
		NewError(CodeCommandNotFound, err.Error(), false, err))
}
