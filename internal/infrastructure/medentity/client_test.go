package medentity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/clinscribe/clinical-scribe/internal/infrastructure/resilience"
)

func TestDetectParsesEntitiesWithAttributes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/detect-entities" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "takes lisinopril 10mg daily" {
			t.Errorf("request text = %q", req.Text)
		}
		_, _ = w.Write([]byte(`{
			"entities": [
				{
					"text": "lisinopril",
					"category": "MEDICATION",
					"score": 0.97,
					"attributes": [
						{"type": "DOSAGE", "text": "10mg", "score": 0.9},
						{"type": "FREQUENCY", "text": "daily", "score": 0.85}
					]
				},
				{"text": "hypertension", "category": "MEDICAL_CONDITION", "score": 0.91}
			]
		}`))
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	entities, err := client.Detect(context.Background(), "takes lisinopril 10mg daily")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("entities = %+v", entities)
	}
	if entities[0].Text != "lisinopril" || entities[0].Category != "MEDICATION" {
		t.Fatalf("first entity = %+v", entities[0])
	}
	if len(entities[0].Attributes) != 2 || entities[0].Attributes[0].Type != "DOSAGE" {
		t.Fatalf("attributes = %+v", entities[0].Attributes)
	}
	if len(entities[1].Attributes) != 0 {
		t.Fatalf("condition attributes = %+v", entities[1].Attributes)
	}
}

func TestDetectRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"entities":[]}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryInitialBackoff: 1, RetryMaxBackoff: 1})
	client := New(server.URL, "", Options{ResilienceExecutor: executor})

	entities, err := client.Detect(context.Background(), "t")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(entities) != 0 {
		t.Fatalf("entities = %+v", entities)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestDetectDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "text too large", http.StatusBadRequest)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryInitialBackoff: 1, RetryMaxBackoff: 1})
	client := New(server.URL, "", Options{ResilienceExecutor: executor})

	_, err := client.Detect(context.Background(), "t")
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("error = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("client error retried: %d calls", calls.Load())
	}
}

func TestDetectSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-1" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"entities":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "key-1", Options{})
	if _, err := client.Detect(context.Background(), "t"); err != nil {
		t.Fatalf("Detect: %v", err)
	}
}

func TestClassifyDetectError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"canceled", context.Canceled, false, false},
		{"deadline", context.DeadlineExceeded, false, false},
		{"retryable status", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true, true},
		{"client status", &HTTPStatusError{StatusCode: http.StatusUnprocessableEntity}, false, false},
		{"unknown", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyDetectError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("classification = %+v", got)
			}
		})
	}
}
