package mq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/amekhanov/bpmbridge/internal/domain"
)

// fakeAcknowledger записывает ack/nack для проверок.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func testDelivery(t *testing.T, ack *fakeAcknowledger, msg *TaskMessage) amqp.Delivery {
	t.Helper()

	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}

	return amqp.Delivery{
		Acknowledger: ack,
		Body:         body,
	}
}

func testConsumer(handler Handler) *Consumer {
	return NewConsumer(&Connection{}, slog.Default(), ConsumerConfig{
		Queue:   "bitrix24_tasks",
		Handler: handler,
	})
}

func TestHandleDelivery_AcksOnSuccess(t *testing.T) {
	var handled *Delivery

	c := testConsumer(func(_ context.Context, d *Delivery) error {
		handled = d
		return nil
	})

	ack := &fakeAcknowledger{}
	msg := &TaskMessage{
		ID:     "msg-1",
		TaskID: "task-1",
		Topic:  "bitrix24_new_action",
	}

	c.handleDelivery(context.Background(), testDelivery(t, ack, msg))

	if handled == nil {
		t.Fatal("handler was not called")
	}
	if handled.Message.TaskID != "task-1" {
		t.Errorf("unexpected parsed message: %+v", handled.Message)
	}
	if !ack.acked {
		t.Error("successful handling must ack exactly once")
	}
	if ack.nacked {
		t.Error("successful handling must not nack")
	}
}

func TestHandleDelivery_DeadLettersOnHandlerError(t *testing.T) {
	c := testConsumer(func(_ context.Context, _ *Delivery) error {
		return errors.New("handler exploded")
	})

	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), testDelivery(t, ack, &TaskMessage{ID: "msg-1"}))

	if ack.acked {
		t.Error("failed handling must not ack")
	}
	if !ack.nacked {
		t.Fatal("failed handling must nack")
	}
	if ack.requeue {
		t.Error("nack must not requeue: poison message would loop forever")
	}
}

func TestHandleDelivery_DeadLettersOnMalformedBody(t *testing.T) {
	called := false
	c := testConsumer(func(_ context.Context, _ *Delivery) error {
		called = true
		return nil
	})

	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte("{not json"),
	})

	if called {
		t.Error("handler must not be called for malformed body")
	}
	if !ack.nacked || ack.requeue {
		t.Error("malformed body must be dead-lettered without requeue")
	}
}

func TestNewTaskMessage_CarriesTaskFields(t *testing.T) {
	retries := 2
	task := &domain.ExternalTask{
		ID:                "task-1",
		Topic:             "op_create_task",
		ProcessInstanceID: "proc-1",
		BusinessKey:       "ORDER-42",
		Retries:           &retries,
		Variables: domain.Variables{
			"subject": {Value: "hello", Type: "String"},
		},
	}

	msg := NewTaskMessage(task)

	if msg.ID == "" {
		t.Error("message must get a unique id")
	}
	if msg.TaskID != "task-1" || msg.Topic != "op_create_task" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.BusinessKey != "ORDER-42" || msg.ProcessInstanceID != "proc-1" {
		t.Errorf("business key and process instance must be carried: %+v", msg)
	}
	if msg.Variables["subject"].Value != "hello" {
		t.Errorf("variables must be carried as is: %+v", msg.Variables)
	}
	if msg.EnqueuedAt.IsZero() || time.Since(msg.EnqueuedAt) > time.Minute {
		t.Errorf("enqueued_at must be set to now, got %v", msg.EnqueuedAt)
	}
}

func TestPublish_FailsFastWhenDisconnected(t *testing.T) {
	// Соединение без установленного conn — публикация должна упасть
	// сразу, а не ждать reconnect.
	p := NewPublisher(&Connection{}, slog.Default())

	err := p.Publish(context.Background(), "bitrix24.topic", &TaskMessage{ID: "m"})
	if !errors.Is(err, ErrBrokerUnavailable) {
		t.Errorf("expected ErrBrokerUnavailable, got %v", err)
	}
}

func TestDLQName(t *testing.T) {
	if DLQName("bitrix24_tasks") != "bitrix24_tasks.dlq" {
		t.Errorf("unexpected DLQ name: %s", DLQName("bitrix24_tasks"))
	}
}
