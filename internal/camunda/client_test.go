package camunda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amekhanov/bpmbridge/internal/domain"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:  url,
		WorkerID: "test-worker",
	})
}

func TestFetchAndLock_ReturnsTasks(t *testing.T) {
	var gotReq map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/external-task/fetchAndLock" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":                 "task-1",
				"topicName":          "op_create_task",
				"processInstanceId":  "proc-1",
				"businessKey":        "ORDER-42",
				"retries":            nil,
				"lockExpirationTime": "2026-08-27T12:00:00.000+0000",
				"workerId":           "test-worker",
				"variables": map[string]any{
					"amount": map[string]any{"value": 100, "type": "Integer"},
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tasks, err := client.FetchAndLock(context.Background(), []string{"op_create_task"}, 5, 30*time.Second, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}

	task := tasks[0]
	if task.ID != "task-1" || task.Topic != "op_create_task" {
		t.Errorf("unexpected task: %+v", task)
	}
	if task.BusinessKey != "ORDER-42" {
		t.Errorf("expected businessKey ORDER-42, got %q", task.BusinessKey)
	}
	if task.Retries != nil {
		t.Errorf("expected nil retries, got %v", *task.Retries)
	}
	if task.LockExpiration.IsZero() {
		t.Error("lockExpirationTime should be parsed")
	}
	if v := task.Variables["amount"]; v.Type != "Integer" {
		t.Errorf("expected Integer variable, got %+v", v)
	}

	// Проверяем тело запроса
	if gotReq["workerId"] != "test-worker" {
		t.Errorf("expected workerId in request, got %v", gotReq["workerId"])
	}
	if gotReq["maxTasks"] != float64(5) {
		t.Errorf("expected maxTasks 5, got %v", gotReq["maxTasks"])
	}
	topics, _ := gotReq["topics"].([]any)
	if len(topics) != 1 {
		t.Fatalf("expected 1 topic in request, got %v", gotReq["topics"])
	}
	topic := topics[0].(map[string]any)
	if topic["lockDuration"] != float64(30000) {
		t.Errorf("expected lockDuration 30000ms, got %v", topic["lockDuration"])
	}
}

func TestFetchAndLock_EngineDown(t *testing.T) {
	// Закрытый сервер — соединение откажет.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchAndLock(context.Background(), []string{"t"}, 1, time.Second, time.Second)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestComplete_Success(t *testing.T) {
	var gotPath string
	var gotReq map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	vars := domain.Variables{"result": {Value: "ok", Type: "String"}}
	if err := client.Complete(context.Background(), "task-1", vars); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/external-task/task-1/complete" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotReq["workerId"] != "test-worker" {
		t.Errorf("expected workerId, got %v", gotReq["workerId"])
	}
}

func TestComplete_TaskNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Complete(context.Background(), "gone", nil)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestFail_SendsRetriesAndTimeout(t *testing.T) {
	var gotReq map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Fail(context.Background(), "task-1", "broker unavailable", 2, 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotReq["retries"] != float64(2) {
		t.Errorf("expected retries 2, got %v", gotReq["retries"])
	}
	if gotReq["retryTimeout"] != float64(10000) {
		t.Errorf("expected retryTimeout 10000ms, got %v", gotReq["retryTimeout"])
	}
	if gotReq["errorMessage"] != "broker unavailable" {
		t.Errorf("expected errorMessage, got %v", gotReq["errorMessage"])
	}
}

func TestReportBPMNError_SendsErrorCode(t *testing.T) {
	var gotPath string
	var gotReq map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.ReportBPMNError(context.Background(), "task-1", "INVALID_ORDER", "order rejected")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/external-task/task-1/bpmnError" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotReq["errorCode"] != "INVALID_ORDER" {
		t.Errorf("expected errorCode, got %v", gotReq["errorCode"])
	}
}

func TestExtendLock_Expired(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusBadRequest} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		client := newTestClient(server.URL)

		err := client.ExtendLock(context.Background(), "task-1", time.Minute)
		if !errors.Is(err, ErrLockExpired) {
			t.Errorf("status %d: expected ErrLockExpired, got %v", status, err)
		}

		server.Close()
	}
}

func TestExtendLock_Success(t *testing.T) {
	var gotReq map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	if err := client.ExtendLock(context.Background(), "task-1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotReq["newDuration"] != float64(60000) {
		t.Errorf("expected newDuration 60000ms, got %v", gotReq["newDuration"])
	}
}

func TestAuth_BearerBeatsBasic(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:  server.URL,
		WorkerID: "w",
		User:     "demo",
		Password: "demo",
		Token:    "secret-token",
	})

	client.Complete(context.Background(), "t", nil)

	if gotAuth != "Bearer secret-token" {
		t.Errorf("expected bearer auth to win, got %q", gotAuth)
	}
}

func TestStatusError_5xxIsEngineUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Complete(context.Background(), "task-1", nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("expected ErrEngineUnavailable on 502, got %v", err)
	}
}
