package awx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/config"
)

func newTestDispatcher(t *testing.T, handler http.Handler) (*command.Dispatcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	family := &config.Family{
		DefaultInstance: "dev",
		Instances:       []config.Instance{{Name: "dev", BaseURL: server.URL, BearerToken: "awx-token"}},
	}

	reg := command.NewRegistry()
	reg.Register(NewService(NewFactory(family, nil), nil))
	exec := command.NewExecutor(command.ExecutorConfig{BaseDelay: time.Millisecond})
	return command.NewDispatcher(reg, exec, nil, nil), server
}

func TestClassify(t *testing.T) {
	tests := map[string]Phase{
		"new":        PhaseRunning,
		"pending":    PhaseRunning,
		"waiting":    PhaseRunning,
		"running":    PhaseRunning,
		"successful": PhaseSucceeded,
		"Successful": PhaseSucceeded,
		"failed":     PhaseFailed,
		"error":      PhaseFailed,
		"canceled":   PhaseFailed,
		"mystery":    PhaseRunning,
		"":           PhaseRunning,
	}
	for status, want := range tests {
		if got := Classify(status); got != want {
			t.Errorf("Classify(%q): expected %s, got %s", status, want, got)
		}
	}
}

func TestLaunchWorkflow(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 4711, "workflow_job": 4711, "status": "pending", "url": "/api/v2/workflow_jobs/4711/"}`))
	}))

	res := d.ExecuteCommand(context.Background(), ServiceName, CommandLaunchWorkflow, &LaunchRequest{
		TemplateID: 12,
		ExtraVars:  map[string]any{"project_key": "PRJ"},
	}, nil)

	if !res.Success {
		t.Fatalf("expected success, got %s: %s", res.ErrorCode, res.ErrorMessage)
	}
	launched, ok := command.DataAs[*LaunchResult](res)
	if !ok {
		t.Fatalf("unexpected data type %T", res.Data)
	}
	if launched.JobID != "4711" || launched.Status != "pending" {
		t.Errorf("unexpected launch result %+v", launched)
	}
	if gotPath != "/api/v2/workflow_job_templates/12/launch/" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer awx-token" {
		t.Errorf("unexpected auth %q", gotAuth)
	}
	vars, _ := gotBody["extra_vars"].(map[string]any)
	if vars["project_key"] != "PRJ" {
		t.Errorf("extra_vars not sent: %v", gotBody)
	}
}

func TestLaunchWorkflow_Validation(t *testing.T) {
	var calls atomic.Int32
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))

	res := d.ExecuteCommand(context.Background(), ServiceName, CommandLaunchWorkflow, &LaunchRequest{}, nil)
	if res.ErrorCode != command.CodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %s", res.ErrorCode)
	}
	if calls.Load() != 0 {
		t.Error("backend should not be called")
	}
}

func TestGetJobStatus(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/workflow_jobs/4711/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"id": 4711, "name": "membership", "status": "failed", "failed": true, "job_explanation": "disk full", "elapsed": 3.5}`))
	}))

	res := d.ExecuteCommand(context.Background(), ServiceName, CommandGetJobStatus, &JobStatusRequest{JobID: "4711"}, nil)
	if !res.Success {
		t.Fatalf("expected success, got %s", res.ErrorMessage)
	}
	status, _ := command.DataAs[*JobStatus](res)
	if status.Classify() != PhaseFailed || status.Phase != "failed" {
		t.Errorf("expected failed phase, got %+v", status)
	}
	if status.Explanation != "disk full" {
		t.Errorf("expected explanation, got %q", status.Explanation)
	}

	missing := d.ExecuteCommand(context.Background(), ServiceName, CommandGetJobStatus, &JobStatusRequest{JobID: "1"}, nil)
	if missing.ErrorCode != command.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", missing.ErrorCode)
	}
}

func TestGetJobStatus_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id": 5, "status": "running"}`))
	}))

	res := d.ExecuteCommand(context.Background(), ServiceName, CommandGetJobStatus,
		&JobStatusRequest{JobID: "5"}, &command.Context{RetryAttempts: 2})
	if !res.Success {
		t.Fatalf("expected success after retry, got %s", res.ErrorMessage)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestGetJobStatus_UnknownInstance(t *testing.T) {
	d, _ := newTestDispatcher(t, http.NotFoundHandler())

	res := d.ExecuteCommand(context.Background(), ServiceName, CommandGetJobStatus,
		&JobStatusRequest{JobID: "5"}, &command.Context{Instance: "prod"})
	if res.ErrorCode != command.CodeConfiguration {
		t.Errorf("expected CONFIGURATION_ERROR, got %s", res.ErrorCode)
	}
}
