package mq

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMessageRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	msg := NewMessage(MessageTypeRequestCompleted, RequestCompletedPayload{
		RequestID:  "r-1",
		JobID:      "4711",
		Project:    "PRJ",
		User:       "alice",
		Successful: false,
		Message:    "Workflow job 4711 failed: disk full",
	}, ts)

	if msg.ID == "" {
		t.Error("expected message id")
	}
	if msg.Timestamp.Location() != time.UTC {
		t.Error("timestamp should be UTC")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"type":"request.completed"`) {
		t.Errorf("unexpected body %s", body)
	}

	var decoded Message
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	payload, err := ParsePayload[RequestCompletedPayload](&decoded)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.JobID != "4711" || payload.Successful || !strings.Contains(payload.Message, "disk full") {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestParsePayload_TypeMismatch(t *testing.T) {
	msg := &Message{Payload: map[string]any{"successful": "yes"}}
	if _, err := ParsePayload[RequestCompletedPayload](msg); err == nil {
		t.Error("expected error for mismatched payload")
	}
}

func TestTopologyInfo(t *testing.T) {
	info := TopologyInfo()
	for _, want := range []string{string(ExchangeRequests), string(QueueRequestsAudit), string(QueueDLQRequests)} {
		if !strings.Contains(info, want) {
			t.Errorf("topology info should mention %s", want)
		}
	}
}
