package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Grantflow/internal/telemetry"
)

const (
	defaultBaseDelay = time.Second
	tracerName       = "github.com/shaiso/Grantflow/internal/command"
)

// ExecutorConfig — конфигурация Executor.
type ExecutorConfig struct {
	// BaseDelay — шаг линейного backoff: пауза после попытки n равна n × BaseDelay (default: 1s).
	BaseDelay time.Duration

	// MaxDelay ограничивает паузу. 0 — без ограничения.
	MaxDelay time.Duration

	// Pool — pool для ExecuteAsync. Если nil, ExecuteAsync отклоняет вызовы.
	Pool *Pool

	// Logger
	Logger *slog.Logger

	// Now — источник времени (для тестов). Default: time.Now.
	Now func() time.Time
}

// Executor выполняет команды с валидацией и retry.
type Executor struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	pool      *Pool
	logger    *slog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

// NewExecutor создаёт Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Executor{
		baseDelay: baseDelay,
		maxDelay:  cfg.MaxDelay,
		pool:      cfg.Pool,
		logger:    telemetry.OrDefault(cfg.Logger),
		now:       now,
		tracer:    otel.Tracer(tracerName),
	}
}

// Execute выполняет команду и всегда возвращает Result.
//
// Порядок:
//  1. Validate; ошибка → VALIDATION_ERROR без вызова backend'а
//  2. до RetryAttempts+1 попыток; повтор только для retryable *Error
//  3. паника или нетипизированная ошибка → UNKNOWN_ERROR
func (e *Executor) Execute(ctx context.Context, cmd Command, req any, cc *Context) *Result {
	if cc == nil {
		cc = DefaultContext()
	}

	service, name := cmd.Service(), cmd.Name()
	executionID := uuid.NewString()
	logger := telemetry.WithCommand(telemetry.FromContextOr(ctx, e.logger), service, name).
		With("execution_id", executionID)

	ctx, span := e.tracer.Start(ctx, service+"."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("grantflow.service", service),
			attribute.String("grantflow.command", name),
			attribute.String("grantflow.instance", cc.Instance),
			attribute.String("grantflow.execution_id", executionID),
		),
	)
	defer span.End()

	start := e.now()

	if err := e.validate(cmd, req); err != nil {
		end := e.now()
		res := failure(service, name, CodeOf(err), errorMessage(err), start, end, err)
		e.fillMetadata(res, cc, executionID, 0)
		e.record(res, span)
		logger.Warn("command validation failed", "error", err)
		return res
	}

	maxAttempts := cc.RetryAttempts + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		data     any
		lastErr  error
		attempts int
	)

retry:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		data, lastErr = e.attempt(ctx, cmd, req, cc)
		if lastErr == nil {
			break
		}

		var ce *Error
		if !errors.As(lastErr, &ce) || !ce.Retryable || attempt == maxAttempts {
			break
		}

		delay := e.backoff(attempt)
		telemetry.CommandRetries.WithLabelValues(service, name).Inc()
		logger.Warn("command attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", lastErr,
		)
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error", lastErr.Error()),
		))

		// Ждём с учётом context
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			lastErr = fmt.Errorf("%w (retry interrupted: %v)", lastErr, ctx.Err())
			break retry
		}
	}

	end := e.now()

	var res *Result
	if lastErr == nil {
		res = &Result{
			Success:         true,
			Data:            data,
			ServiceName:     service,
			CommandName:     name,
			StartTime:       start,
			EndTime:         end,
			ExecutionTimeMs: end.Sub(start).Milliseconds(),
		}
		logger.Info("command succeeded", "attempts", attempts, "duration_ms", res.ExecutionTimeMs)
	} else {
		res = failure(service, name, CodeOf(lastErr), errorMessage(lastErr), start, end, lastErr)
		logger.Error("command failed",
			"attempts", attempts,
			"error_code", res.ErrorCode,
			"error", lastErr,
		)
	}

	e.fillMetadata(res, cc, executionID, attempts)
	e.record(res, span)
	return res
}

// ExecuteAsync отдаёт Execute в Pool и сразу возвращает Future.
//
// Отмена ctx после постановки в очередь выполнение не прерывает.
// Если Pool не принял задачу, возвращается *Error с кодом POOL_REJECTED,
// а Future уже завершён тем же отказом. Ошибка nil означает, что задача в очереди.
func (e *Executor) ExecuteAsync(ctx context.Context, cmd Command, req any, cc *Context) (*Future, error) {
	if cc == nil {
		cc = DefaultContext()
	}
	cc = cc.Clone()
	cc.Async = true

	f := newFuture()

	if e.pool == nil {
		return f.fail(e.rejected(cmd, cc, ErrPoolClosed))
	}

	detached := context.WithoutCancel(ctx)
	err := e.pool.Submit(ctx, func() {
		f.complete(e.Execute(detached, cmd, req, cc))
	})
	if err != nil {
		return f.fail(e.rejected(cmd, cc, err))
	}
	return f, nil
}

// attempt выполняет одну попытку с таймаутом и перехватом паники.
func (e *Executor) attempt(ctx context.Context, cmd Command, req any, cc *Context) (data any, err error) {
	if cc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cc.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = NewError(CodeUnknown, fmt.Sprintf("command panicked: %v", r), false, nil)
			e.logger.Error("command panicked",
				"service", cmd.Service(),
				"command", cmd.Name(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	return cmd.Execute(ctx, req, cc)
}

// validate вызывает Validate с перехватом паники.
func (e *Executor) validate(cmd Command, req any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(CodeUnknown, fmt.Sprintf("validator panicked: %v", r), false, nil)
		}
	}()

	if err := cmd.Validate(req); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return err
		}
		return ValidationError(err)
	}
	return nil
}

// backoff вычисляет паузу после попытки attempt.
func (e *Executor) backoff(attempt int) time.Duration {
	delay := time.Duration(attempt) * e.baseDelay
	if e.maxDelay > 0 && delay > e.maxDelay {
		delay = e.maxDelay
	}
	return delay
}

func (e *Executor) rejected(cmd Command, cc *Context, err error) *Result {
	now := e.now()
	res := failure(cmd.Service(), cmd.Name(), CodePoolRejected, err.Error(), now, now,
		NewError(CodePoolRejected, err.Error(), false, err))
	e.fillMetadata(res, cc, uuid.NewString(), 0)
	telemetry.CommandExecutions.WithLabelValues(cmd.Service(), cmd.Name(), "rejected").Inc()
	return res
}

func (e *Executor) fillMetadata(res *Result, cc *Context, executionID string, attempts int) {
	md := make(map[string]any, len(cc.Metadata)+4)
	for k, v := range cc.Metadata {
		md[k] = v
	}
	md["execution_id"] = executionID
	md["attempts"] = attempts
	md["async"] = cc.Async
	if cc.Instance != "" {
		md["instance"] = cc.Instance
	}
	res.Metadata = md
}

func (e *Executor) record(res *Result, span trace.Span) {
	outcome := "success"
	if !res.Success {
		outcome = res.ErrorCode
		span.SetStatus(codes.Error, res.ErrorMessage)
	}
	span.SetAttributes(attribute.Int64("grantflow.execution_time_ms", res.ExecutionTimeMs))

	telemetry.CommandExecutions.WithLabelValues(res.ServiceName, res.CommandName, outcome).Inc()
	telemetry.CommandDuration.WithLabelValues(res.ServiceName, res.CommandName).
		Observe(res.EndTime.Sub(res.StartTime).Seconds())
}

func errorMessage(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return err.Error()
}
