package uipath

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/config"
)

func newTestDispatcher(t *testing.T, folderID string, handler http.Handler) *command.Dispatcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	family := &config.Family{
		Instances: []config.Instance{{Name: "cloud", BaseURL: server.URL, BearerToken: "rpa", FolderID: folderID}},
	}

	reg := command.NewRegistry()
	reg.Register(NewService(NewFactory(family, nil), nil))
	exec := command.NewExecutor(command.ExecutorConfig{BaseDelay: time.Millisecond})
	return command.NewDispatcher(reg, exec, nil, nil)
}

func TestClassify(t *testing.T) {
	tests := map[string]Outcome{
		"New":        OutcomeInProgress,
		"InProgress": OutcomeInProgress,
		"Retried":    OutcomeInProgress,
		"Successful": OutcomeSuccess,
		"Failed":     OutcomeFailure,
		"Abandoned":  OutcomeFailure,
		"Deleted":    OutcomeFailure,
		"Exploded":   OutcomeError,
	}
	for status, want := range tests {
		if got := Classify(status); got != want {
			t.Errorf("Classify(%q): expected %s, got %s", status, want, got)
		}
	}
}

func TestGetQueueItemStatus_NoReference(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, "", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))

	res := d.ExecuteCommand(context.Background(), ServiceName, CommandGetQueueItemStatus,
		&QueueItemRequest{Reference: "  ", QueueName: "ProjectMembership"}, nil)
	status, ok := command.DataAs[*QueueItemStatus](res)
	if !ok {
		t.Fatalf("expected success, got %s", res.ErrorMessage)
	}
	if status.Outcome != OutcomeNoReference {
		t.Errorf("expected NO_REFERENCE, got %s", status.Outcome)
	}
	if calls.Load() != 0 {
		t.Error("backend should not be called without reference")
	}
}

func TestGetQueueItemStatus(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		outcome Outcome
		reason  string
	}{
		{"not found", `{"value": []}`, OutcomeNotFound, ""},
		{"in progress", `{"value": [{"Id": 1, "Status": "InProgress", "Reference": "PRJ-alice-dev"}]}`, OutcomeInProgress, ""},
		{"success", `{"value": [{"Id": 2, "Status": "Successful", "Reference": "PRJ-alice-dev"}]}`, OutcomeSuccess, ""},
		{"failure", `{"value": [{"Id": 3, "Status": "Failed", "Reference": "PRJ-alice-dev", "ProcessingException": {"Reason": "user locked", "Details": "AD"}}]}`, OutcomeFailure, "user locked"},
		{"error", `{"value": [{"Id": 4, "Status": "Weird", "Reference": "PRJ-alice-dev"}]}`, OutcomeError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var filter, folder string
			d := newTestDispatcher(t, "42", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				filter = r.URL.Query().Get("$filter")
				folder = r.Header.Get("X-UIPATH-OrganizationUnitId")
				w.Write([]byte(tt.body))
			}))

			res := d.ExecuteCommand(context.Background(), ServiceName, CommandGetQueueItemStatus,
				&QueueItemRequest{Reference: "PRJ-alice-dev", QueueName: "ProjectMembership"}, nil)
			status, ok := command.DataAs[*QueueItemStatus](res)
			if !ok {
				t.Fatalf("expected success, got %s: %s", res.ErrorCode, res.ErrorMessage)
			}
			if status.Outcome != tt.outcome {
				t.Errorf("expected %s, got %s", tt.outcome, status.Outcome)
			}
			if status.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, status.Reason)
			}
			if status.Message() == "" {
				t.Error("expected message")
			}
			if !strings.Contains(filter, "Reference eq 'PRJ-alice-dev'") || !strings.Contains(filter, "'ProjectMembership'") {
				t.Errorf("unexpected filter %q", filter)
			}
			if folder != "42" {
				t.Errorf("expected folder header 42, got %q", folder)
			}
		})
	}
}

func TestGetQueueItemStatus_QuotesReference(t *testing.T) {
	var filter string
	d := newTestDispatcher(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter = r.URL.Query().Get("$filter")
		w.Write([]byte(`{"value": []}`))
	}))

	d.ExecuteCommand(context.Background(), ServiceName, CommandGetQueueItemStatus,
		&QueueItemRequest{Reference: "o'brien", QueueName: "Q"}, nil)
	if !strings.Contains(filter, "'o''brien'") {
		t.Errorf("reference should be quoted, got %q", filter)
	}
}

func TestGetQueueItemStatus_RequiresQueue(t *testing.T) {
	d := newTestDispatcher(t, "", http.NotFoundHandler())
	res := d.ExecuteCommand(context.Background(), ServiceName, CommandGetQueueItemStatus,
		&QueueItemRequest{Reference: "x"}, nil)
	if res.ErrorCode != command.CodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %s", res.ErrorCode)
	}
}
