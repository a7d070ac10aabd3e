package command

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Grantflow/internal/clients"
)

type echoRequest struct {
	Project string `json:"project" validate:"required"`
	Count   int    `json:"count" validate:"gte=0"`
}

type echoResponse struct {
	Project string
	Count   int
}

func echoCommand() Command {
	return New("test", "echo", func(_ context.Context, req *echoRequest, _ *Context) (*echoResponse, error) {
		return &echoResponse{Project: req.Project, Count: req.Count}, nil
	}, nil)
}

type testService struct {
	name     string
	commands []Command
}

func (s *testService) Name() string        { return s.name }
func (s *testService) Commands() []Command { return s.commands }

func newTestExecutor() *Executor {
	return NewExecutor(ExecutorConfig{BaseDelay: time.Millisecond})
}

// --- Typed command ---

func TestTypedCommand_Coerce(t *testing.T) {
	cmd := echoCommand()

	inputs := map[string]any{
		"pointer": &echoRequest{Project: "PRJ", Count: 2},
		"value":   echoRequest{Project: "PRJ", Count: 2},
		"map":     map[string]any{"project": "PRJ", "count": 2},
		"raw":     json.RawMessage(`{"project":"PRJ","count":2}`),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			if err := cmd.Validate(in); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			out, err := cmd.Execute(context.Background(), in, DefaultContext())
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			resp := out.(*echoResponse)
			if resp.Project != "PRJ" || resp.Count != 2 {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestTypedCommand_Validate(t *testing.T) {
	cmd := New("test", "checked", func(_ context.Context, req *echoRequest, _ *Context) (any, error) {
		return nil, nil
	}, func(req *echoRequest) error {
		if req.Project == "FORBIDDEN" {
			return errors.New("project is forbidden")
		}
		return nil
	})

	tests := []struct {
		name    string
		req     any
		wantErr bool
	}{
		{"valid", &echoRequest{Project: "PRJ"}, false},
		{"missing project", &echoRequest{}, true},
		{"negative count", &echoRequest{Project: "PRJ", Count: -1}, true},
		{"custom check", &echoRequest{Project: "FORBIDDEN"}, true},
		{"bad json", json.RawMessage(`{"project": 1}`), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cmd.Validate(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil {
				if CodeOf(err) != CodeValidation {
					t.Errorf("expected VALIDATION_ERROR, got %s", CodeOf(err))
				}
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("expected ErrInvalidRequest, got %v", err)
				}
			}
		})
	}
}

// --- Registry ---

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	echo := echoCommand()
	r.Register(&testService{name: "test", commands: []Command{echo}})

	if !r.HasService("test") {
		t.Error("service should be registered")
	}
	if !r.HasCommand("test", "echo") {
		t.Error("command should be registered")
	}
	if r.HasCommand("test", "missing") || r.HasCommand("other", "echo") {
		t.Error("unexpected command found")
	}

	got, ok := r.GetCommand("test", "echo")
	if !ok || got != echo {
		t.Error("GetCommand should return the registered command")
	}
	if _, ok := r.GetService("nope"); ok {
		t.Error("GetService should report missing service")
	}

	// Перерегистрация перезаписывает
	replacement := echoCommand()
	r.RegisterCommand(replacement)
	got, _ = r.GetCommand("test", "echo")
	if got != replacement {
		t.Error("re-registration should overwrite")
	}

	r.RegisterCommand(New("alpha", "b", func(context.Context, *struct{}, *Context) (any, error) { return nil, nil }, nil))
	r.RegisterCommand(New("alpha", "a", func(context.Context, *struct{}, *Context) (any, error) { return nil, nil }, nil))

	list := r.List()
	want := []Descriptor{{"alpha", "a"}, {"alpha", "b"}, {"test", "echo"}}
	if len(list) != len(want) {
		t.Fatalf("expected %d commands, got %v", len(want), list)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("list[%d]: expected %v, got %v", i, want[i], list[i])
		}
	}
	if svcs := r.Services(); len(svcs) != 1 || svcs[0] != "test" {
		t.Errorf("expected [test], got %v", svcs)
	}
}

// --- Executor ---

func TestExecutor_Success(t *testing.T) {
	e := newTestExecutor()

	res := e.Execute(context.Background(), echoCommand(), &echoRequest{Project: "PRJ"},
		&Context{Instance: "dev", Metadata: map[string]any{"caller": "test"}})

	if !res.Success {
		t.Fatalf("expected success, got %s: %s", res.ErrorCode, res.ErrorMessage)
	}
	resp, ok := DataAs[*echoResponse](res)
	if !ok || resp.Project != "PRJ" {
		t.Errorf("unexpected data %#v", res.Data)
	}
	if res.ServiceName != "test" || res.CommandName != "echo" {
		t.Errorf("unexpected identifiers %s/%s", res.ServiceName, res.CommandName)
	}
	if res.EndTime.Before(res.StartTime) {
		t.Error("end time before start time")
	}
	if res.Metadata["attempts"] != 1 {
		t.Errorf("expected 1 attempt, got %v", res.Metadata["attempts"])
	}
	if res.Metadata["instance"] != "dev" || res.Metadata["caller"] != "test" {
		t.Errorf("unexpected metadata %v", res.Metadata)
	}
	if res.Metadata["execution_id"] == "" {
		t.Error("expected execution_id")
	}
}

func TestExecutor_RetryExhaustion(t *testing.T) {
	for _, retries := range []int{0, 1, 3} {
		var calls atomic.Int32
		cmd := New("test", "flaky", func(context.Context, *struct{}, *Context) (any, error) {
			n := calls.Add(1)
			code := CodeBackend
			if n > 1 {
				code = CodeBackendUnavailable
			}
			return nil, NewError(code, "backend down", true, nil)
		}, nil)

		res := newTestExecutor().Execute(context.Background(), cmd, nil, &Context{RetryAttempts: retries})

		if got := int(calls.Load()); got != retries+1 {
			t.Errorf("retries=%d: expected %d calls, got %d", retries, retries+1, got)
		}
		if res.Success {
			t.Errorf("retries=%d: expected failure", retries)
		}
		wantCode := CodeBackendUnavailable
		if retries == 0 {
			wantCode = CodeBackend
		}
		if res.ErrorCode != wantCode {
			t.Errorf("retries=%d: expected last error code %s, got %s", retries, wantCode, res.ErrorCode)
		}
		if res.Metadata["attempts"] != retries+1 {
			t.Errorf("retries=%d: expected attempts %d, got %v", retries, retries+1, res.Metadata["attempts"])
		}
	}
}

func TestExecutor_SucceedsAfterRetry(t *testing.T) {
	var calls atomic.Int32
	cmd := New("test", "flaky", func(context.Context, *struct{}, *Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", NewError(CodeBackendUnavailable, "timeout", true, nil)
		}
		return "ok", nil
	}, nil)

	res := newTestExecutor().Execute(context.Background(), cmd, nil, &Context{RetryAttempts: 5})
	if !res.Success {
		t.Fatalf("expected success, got %s", res.ErrorMessage)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	if res.Data != "ok" {
		t.Errorf("expected data ok, got %v", res.Data)
	}
}

func TestExecutor_NonRetryable(t *testing.T) {
	var calls atomic.Int32
	cmd := New("test", "notfound", func(context.Context, *struct{}, *Context) (any, error) {
		calls.Add(1)
		return nil, NewError(CodeNotFound, "job 7 not found", false, nil)
	}, nil)

	res := newTestExecutor().Execute(context.Background(), cmd, nil, &Context{RetryAttempts: 3})
	if calls.Load() != 1 {
		t.Errorf("non-retryable error should not be retried, got %d calls", calls.Load())
	}
	if res.ErrorCode != CodeNotFound || res.ErrorMessage != "job 7 not found" {
		t.Errorf("unexpected result %s: %s", res.ErrorCode, res.ErrorMessage)
	}
}

func TestExecutor_UntypedErrorIsUnknown(t *testing.T) {
	var calls atomic.Int32
	cmd := New("test", "plain", func(context.Context, *struct{}, *Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}, nil)

	res := newTestExecutor().Execute(context.Background(), cmd, nil, &Context{RetryAttempts: 2})
	if res.ErrorCode != CodeUnknown {
		t.Errorf("expected UNKNOWN_ERROR, got %s", res.ErrorCode)
	}
	if calls.Load() != 1 {
		t.Errorf("untyped error should not be retried, got %d calls", calls.Load())
	}
	if res.Err() == nil {
		t.Error("expected underlying error")
	}
}

func TestExecutor_Panic(t *testing.T) {
	cmd := New("test", "panics", func(context.Context, *struct{}, *Context) (any, error) {
		panic("nil map")
	}, nil)

	res := newTestExecutor().Execute(context.Background(), cmd, nil, nil)
	if res.Success || res.ErrorCode != CodeUnknown {
		t.Errorf("expected UNKNOWN_ERROR after panic, got %+v", res)
	}
}

func TestExecutor_ValidationShortCircuit(t *testing.T) {
	var calls atomic.Int32
	cmd := New("test", "guarded", func(context.Context, *echoRequest, *Context) (any, error) {
		calls.Add(1)
		return nil, nil
	}, nil)

	res := newTestExecutor().Execute(context.Background(), cmd, &echoRequest{}, &Context{RetryAttempts: 3})
	if res.Success {
		t.Fatal("expected validation failure")
	}
	if res.ErrorCode != CodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %s", res.ErrorCode)
	}
	if calls.Load() != 0 {
		t.Errorf("backend should not be called, got %d calls", calls.Load())
	}
	if res.Metadata["attempts"] != 0 {
		t.Errorf("expected 0 attempts, got %v", res.Metadata["attempts"])
	}
}

func TestExecutor_AttemptTimeout(t *testing.T) {
	cmd := New("test", "slow", func(ctx context.Context, _ *struct{}, _ *Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, NewError(CodeBackendUnavailable, "deadline exceeded", true, ctx.Err())
		case <-time.After(2 * time.Second):
			return "late", nil
		}
	}, nil)

	start := time.Now()
	res := newTestExecutor().Execute(context.Background(), cmd, nil,
		&Context{Timeout: 20 * time.Millisecond, RetryAttempts: 1})

	if res.ErrorCode != CodeBackendUnavailable {
		t.Errorf("expected BACKEND_UNAVAILABLE, got %s", res.ErrorCode)
	}
	if time.Since(start) > time.Second {
		t.Error("per-attempt timeout not applied")
	}
}

func TestExecutor_CancelDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	cmd := New("test", "down", func(context.Context, *struct{}, *Context) (any, error) {
		calls.Add(1)
		return nil, NewError(CodeBackend, "503", true, nil)
	}, nil)

	e := NewExecutor(ExecutorConfig{BaseDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := e.Execute(ctx, cmd, nil, &Context{RetryAttempts: 5})
	if calls.Load() != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls.Load())
	}
	if res.ErrorCode != CodeBackend {
		t.Errorf("expected last error code, got %s", res.ErrorCode)
	}
}

func TestExecutor_Backoff(t *testing.T) {
	e := NewExecutor(ExecutorConfig{BaseDelay: 100 * time.Millisecond})
	for attempt, want := range map[int]time.Duration{1: 100 * time.Millisecond, 3: 300 * time.Millisecond, 50: 5 * time.Second} {
		if got := e.backoff(attempt); got != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}

	capped := NewExecutor(ExecutorConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond})
	if got := capped.backoff(5); got != 250*time.Millisecond {
		t.Errorf("expected capped delay 250ms, got %v", got)
	}
}

// --- Async ---

func TestExecutor_ExecuteAsync(t *testing.T) {
	pool := NewPool(2, 4, nil)
	defer pool.Close()

	release := make(chan struct{})
	cmd := New("test", "blocked", func(context.Context, *struct{}, *Context) (string, error) {
		<-release
		return "done", nil
	}, nil)

	e := NewExecutor(ExecutorConfig{BaseDelay: time.Millisecond, Pool: pool})

	ctx, cancel := context.WithCancel(context.Background())
	f, err := e.ExecuteAsync(ctx, cmd, nil, nil)
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	cancel() // отмена после постановки в очередь не прерывает выполнение

	if f.Result() != nil {
		t.Fatal("result should not be ready yet")
	}
	close(release)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	res, err := f.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !res.Success || res.Data != "done" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Metadata["async"] != true {
		t.Error("expected async metadata")
	}
}

func TestExecutor_ExecuteAsyncRejected(t *testing.T) {
	pool := NewPool(1, 0, nil)
	pool.Close()

	e := NewExecutor(ExecutorConfig{Pool: pool})
	f, err := e.ExecuteAsync(context.Background(), echoCommand(), &echoRequest{Project: "P"}, nil)
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
	var cmdErr *Error
	if !errors.As(err, &cmdErr) || cmdErr.Code != CodePoolRejected {
		t.Errorf("expected *Error with POOL_REJECTED, got %v", err)
	}

	select {
	case <-f.Done():
	default:
		t.Fatal("rejected future should be complete")
	}
	if res := f.Result(); res.ErrorCode != CodePoolRejected {
		t.Errorf("expected POOL_REJECTED, got %s", res.ErrorCode)
	}

	noPool := NewExecutor(ExecutorConfig{})
	nf, err := noPool.ExecuteAsync(context.Background(), echoCommand(), nil, nil)
	if err == nil {
		t.Error("executor without pool should return an error")
	}
	if res := nf.Result(); res.ErrorCode != CodePoolRejected {
		t.Errorf("executor without pool should reject, got %s", res.ErrorCode)
	}
}

func TestExecutor_ExecuteAsyncQueuedFailure(t *testing.T) {
	pool := NewPool(1, 1, nil)
	defer pool.Close()

	e := NewExecutor(ExecutorConfig{BaseDelay: time.Millisecond, Pool: pool})
	// Ошибка валидации возникает в воркере, а не при постановке в очередь
	f, err := e.ExecuteAsync(context.Background(), echoCommand(), &echoRequest{}, nil)
	if err != nil {
		t.Fatalf("queued command should not return an error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Success || res.ErrorCode != CodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %+v", res)
	}
}

func TestPool_DrainsOnClose(t *testing.T) {
	pool := NewPool(1, 10, nil)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		if err := pool.Submit(context.Background(), func() {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	pool.Close()

	if ran.Load() != 10 {
		t.Errorf("expected all 10 tasks to run, got %d", ran.Load())
	}
	if err := pool.Submit(context.Background(), func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPool_SubmitBlocksUntilContextDone(t *testing.T) {
	pool := NewPool(1, 0, nil)
	defer pool.Close()

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	if err := pool.Submit(context.Background(), func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Submit(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

// --- Dispatcher ---

func TestDispatcher(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&testService{name: "test", commands: []Command{echoCommand()}})
	d := NewDispatcher(reg, newTestExecutor(), nil, nil)

	res := d.ExecuteCommand(context.Background(), "test", "echo", map[string]any{"project": "PRJ"}, nil)
	if !res.Success {
		t.Fatalf("expected success, got %s", res.ErrorMessage)
	}

	missing := d.ExecuteCommand(context.Background(), "test", "nope", nil, nil)
	if missing.Success || missing.ErrorCode != CodeCommandNotFound {
		t.Errorf("expected COMMAND_NOT_FOUND, got %+v", missing)
	}
	if !errors.Is(missing.Err(), ErrCommandNotFound) {
		t.Errorf("expected ErrCommandNotFound, got %v", missing.Err())
	}

	f, err := d.ExecuteCommandAsync(context.Background(), "ghost", "echo", nil, nil)
	if !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("expected ErrCommandNotFound, got %v", err)
	}
	if res := f.Result(); res == nil || res.ErrorCode != CodeCommandNotFound {
		t.Errorf("async lookup should fail fast with COMMAND_NOT_FOUND, got %+v", res)
	}
}

func TestDispatcher_DefaultTimeout(t *testing.T) {
	var got time.Duration
	cmd := New("test", "ctx", func(_ context.Context, _ *struct{}, cc *Context) (any, error) {
		got = cc.Timeout
		return nil, nil
	}, nil)
	reg := NewRegistry()
	reg.RegisterCommand(cmd)

	d := NewDispatcher(reg, newTestExecutor(), &Context{Timeout: 7 * time.Second}, nil)
	d.ExecuteCommand(context.Background(), "test", "ctx", nil, &Context{Instance: "dev"})
	if got != 7*time.Second {
		t.Errorf("expected default timeout 7s, got %v", got)
	}
}

func TestDispatcher_NegativeTimeoutDisablesDeadline(t *testing.T) {
	var (
		got         time.Duration
		hasDeadline bool
	)
	cmd := New("test", "slow", func(ctx context.Context, _ *struct{}, cc *Context) (string, error) {
		got = cc.Timeout
		_, hasDeadline = ctx.Deadline()
		select {
		case <-time.After(50 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, nil)
	reg := NewRegistry()
	reg.RegisterCommand(cmd)

	d := NewDispatcher(reg, newTestExecutor(), &Context{Timeout: 10 * time.Millisecond}, nil)

	res := d.ExecuteCommand(context.Background(), "test", "slow", nil, &Context{Timeout: -1})
	if !res.Success {
		t.Fatalf("negative timeout should run without deadline, got %s: %s", res.ErrorCode, res.ErrorMessage)
	}
	if got >= 0 {
		t.Errorf("negative timeout should be kept, got %v", got)
	}
	if hasDeadline {
		t.Error("attempt context should have no deadline")
	}

	// Нулевой Timeout получает default и упирается в него
	res = d.ExecuteCommand(context.Background(), "test", "slow", nil, &Context{})
	if res.Success {
		t.Fatal("zero timeout should fall back to the 10ms default")
	}
	if got != 10*time.Millisecond {
		t.Errorf("expected default timeout 10ms, got %v", got)
	}
}

// --- Error mapping ---

func TestFromBackend(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"configuration", &clients.ConfigurationError{Family: "awx", Err: clients.ErrUnknownInstance}, CodeConfiguration, false},
		{"unavailable", &clients.BackendError{Err: clients.ErrBackendUnavailable}, CodeBackendUnavailable, true},
		{"not found", &clients.BackendError{StatusCode: http.StatusNotFound, Err: clients.ErrBackendStatus}, CodeNotFound, false},
		{"server error", &clients.BackendError{StatusCode: http.StatusBadGateway, Err: clients.ErrBackendStatus}, CodeBackend, true},
		{"client error", &clients.BackendError{StatusCode: http.StatusForbidden, Err: clients.ErrBackendStatus}, CodeBackend, false},
		{"typed passthrough", NewError(CodeValidation, "x", false, nil), CodeValidation, false},
		{"plain", errors.New("x"), CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromBackend(tt.err)
			if got.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, got.Code)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, got.Retryable)
			}
		})
	}

	if FromBackend(nil) != nil {
		t.Error("nil error should map to nil")
	}
}
