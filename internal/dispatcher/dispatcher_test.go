package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amekhanov/bpmbridge/internal/camunda"
	"github.com/amekhanov/bpmbridge/internal/config"
	"github.com/amekhanov/bpmbridge/internal/domain"
	"github.com/amekhanov/bpmbridge/internal/mq"
	"github.com/amekhanov/bpmbridge/internal/routing"
)

// --- Фейки ---

type failCall struct {
	taskID       string
	errorMessage string
	retries      int
	retryTimeout time.Duration
}

// fakeEngine отдаёт подготовленные батчи задач; когда батчи кончились,
// блокируется как настоящий long-poll до отмены контекста.
type fakeEngine struct {
	mu        sync.Mutex
	batches   [][]domain.ExternalTask
	completed []string
	failed    []failCall
	extendErr error
	extended  []string
}

func (f *fakeEngine) FetchAndLock(ctx context.Context, _ []string, _ int, _, _ time.Duration) ([]domain.ExternalTask, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return nil, fmt.Errorf("%w: %v", camunda.ErrEngineUnavailable, ctx.Err())
}

func (f *fakeEngine) Complete(_ context.Context, taskID string, _ domain.Variables) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, taskID)
	return nil
}

func (f *fakeEngine) Fail(_ context.Context, taskID, errorMessage string, retries int, retryTimeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, failCall{taskID, errorMessage, retries, retryTimeout})
	return nil
}

func (f *fakeEngine) ExtendLock(_ context.Context, taskID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extended = append(f.extended, taskID)
	return f.extendErr
}

func (f *fakeEngine) completedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}

func (f *fakeEngine) failedCalls() []failCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]failCall, len(f.failed))
	copy(out, f.failed)
	return out
}

type publishCall struct {
	key string
	msg *mq.TaskMessage
}

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	blocking  bool // имитирует зависшую публикацию до отмены контекста
	published []publishCall
}

func (f *fakePublisher) Publish(ctx context.Context, key string, msg *mq.TaskMessage) error {
	if f.blocking {
		<-ctx.Done()
		return fmt.Errorf("publish: %w", ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishCall{key, msg})
	return nil
}

func (f *fakePublisher) publishedCalls() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishCall, len(f.published))
	copy(out, f.published)
	return out
}

type fakeStatuses struct {
	statuses map[string]domain.SystemStatus
}

func (f *fakeStatuses) StatusFor(system string) (domain.SystemStatus, bool) {
	s, ok := f.statuses[system]
	return s, ok
}

// --- Хелперы ---

func testTask(id, topic string) domain.ExternalTask {
	return domain.ExternalTask{
		ID:                id,
		Topic:             topic,
		ProcessInstanceID: "proc-" + id,
		BusinessKey:       "BK-" + id,
		LockExpiration:    time.Now().Add(time.Minute),
	}
}

func newTestDispatcher(engine Engine, publisher Publisher, statuses StatusFeed) *Dispatcher {
	return New(Config{
		Engine:       engine,
		Publisher:    publisher,
		Table:        routing.NewTable(config.DefaultRouting()),
		Statuses:     statuses,
		Topics:       []string{"op_create_task", "bitrix24_new_action"},
		MaxTasks:     4,
		LockDuration: 30 * time.Second,
		FetchTimeout: 50 * time.Millisecond,
		MaxRetries:   3,
		RetryBase:    5 * time.Second,
		Grace:        2 * time.Second,
	})
}

// waitFor опрашивает условие до дедлайна.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

// --- Тесты ---

func TestDispatcher_PublishAndComplete(t *testing.T) {
	engine := &fakeEngine{
		batches: [][]domain.ExternalTask{
			{testTask("task-1", "op_create_task")},
		},
	}
	publisher := &fakePublisher{}

	d := newTestDispatcher(engine, publisher, nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	waitFor(t, 3*time.Second, func() bool { return engine.completedCount() == 1 })

	published := publisher.publishedCalls()
	if len(published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(published))
	}
	if published[0].key != "openproject.op_create_task" {
		t.Errorf("unexpected routing key %q", published[0].key)
	}
	if published[0].msg.TaskID != "task-1" || published[0].msg.BusinessKey != "BK-task-1" {
		t.Errorf("message must carry task fields: %+v", published[0].msg)
	}

	if len(engine.failedCalls()) != 0 {
		t.Errorf("completed task must not be failed: %+v", engine.failedCalls())
	}
}

func TestDispatcher_PublishFailure_FailsTaskOnce(t *testing.T) {
	engine := &fakeEngine{
		batches: [][]domain.ExternalTask{
			{testTask("task-1", "bitrix24_new_action")},
		},
	}
	publisher := &fakePublisher{err: mq.ErrBrokerUnavailable}

	d := newTestDispatcher(engine, publisher, nil)
	d.Start(context.Background())
	defer d.Stop()

	waitFor(t, 3*time.Second, func() bool { return len(engine.failedCalls()) == 1 })

	failed := engine.failedCalls()[0]
	if failed.taskID != "task-1" {
		t.Errorf("unexpected failed task %q", failed.taskID)
	}
	// Первая неудача: retries = MaxRetries, timeout = RetryBase
	if failed.retries != 3 {
		t.Errorf("first failure must carry MaxRetries=3, got %d", failed.retries)
	}
	if failed.retryTimeout != 5*time.Second {
		t.Errorf("first failure timeout must be RetryBase, got %v", failed.retryTimeout)
	}

	if engine.completedCount() != 0 {
		t.Error("failed task must not be completed")
	}
}

func TestDispatcher_RetriesExhaust_SingleTerminalIncident(t *testing.T) {
	one := 1
	task := testTask("task-1", "bitrix24_new_action")
	task.Retries = &one // последняя попытка

	engine := &fakeEngine{batches: [][]domain.ExternalTask{{task}}}
	publisher := &fakePublisher{err: mq.ErrBrokerUnavailable}

	d := newTestDispatcher(engine, publisher, nil)
	d.Start(context.Background())
	defer d.Stop()

	waitFor(t, 3*time.Second, func() bool { return len(engine.failedCalls()) >= 1 })
	// Даём циклу шанс ошибиться повторно
	time.Sleep(100 * time.Millisecond)

	failed := engine.failedCalls()
	if len(failed) != 1 {
		t.Fatalf("exactly one terminal report expected, got %d", len(failed))
	}
	if failed[0].retries != 0 {
		t.Errorf("terminal report must carry retries=0, got %d", failed[0].retries)
	}
}

func TestDispatcher_RetryTimeoutGrows(t *testing.T) {
	d := newTestDispatcher(&fakeEngine{}, &fakePublisher{}, nil)

	fresh := testTask("t", "x") // Retries == nil
	if got := d.retryTimeout(&fresh); got != 5*time.Second {
		t.Errorf("fresh task timeout = %v, want 5s", got)
	}

	two := 2
	second := testTask("t", "x")
	second.Retries = &two // одна попытка истрачена
	if got := d.retryTimeout(&second); got != 10*time.Second {
		t.Errorf("second failure timeout = %v, want 10s", got)
	}

	one := 1
	third := testTask("t", "x")
	third.Retries = &one
	if got := d.retryTimeout(&third); got != 20*time.Second {
		t.Errorf("third failure timeout = %v, want 20s", got)
	}
}

func TestDispatcher_SystemInError_FailsFastWithoutPublish(t *testing.T) {
	engine := &fakeEngine{
		batches: [][]domain.ExternalTask{
			{testTask("task-1", "op_create_task")},
		},
	}
	publisher := &fakePublisher{}
	statuses := &fakeStatuses{statuses: map[string]domain.SystemStatus{
		"openproject": {System: "openproject", State: domain.SystemError, LastError: "queue gone"},
	}}

	d := newTestDispatcher(engine, publisher, statuses)
	d.Start(context.Background())
	defer d.Stop()

	waitFor(t, 3*time.Second, func() bool { return len(engine.failedCalls()) == 1 })

	if len(publisher.publishedCalls()) != 0 {
		t.Error("dead system must not receive publishes")
	}

	failed := engine.failedCalls()[0]
	if failed.retryTimeout != healthRetryTimeout {
		t.Errorf("health-gate failure must use short retry timeout, got %v", failed.retryTimeout)
	}
}

func TestDispatcher_DegradedSystemStillPublishes(t *testing.T) {
	engine := &fakeEngine{
		batches: [][]domain.ExternalTask{
			{testTask("task-1", "op_create_task")},
		},
	}
	publisher := &fakePublisher{}
	statuses := &fakeStatuses{statuses: map[string]domain.SystemStatus{
		"openproject": {System: "openproject", State: domain.SystemDegraded},
	}}

	d := newTestDispatcher(engine, publisher, statuses)
	d.Start(context.Background())
	defer d.Stop()

	// Degraded — очередь жива, публикуем: сообщения подождут consumer'а
	waitFor(t, 3*time.Second, func() bool { return engine.completedCount() == 1 })

	if len(publisher.publishedCalls()) != 1 {
		t.Errorf("degraded system must still receive publishes")
	}
}

func TestDispatcher_UnroutedTopicGoesToDefault(t *testing.T) {
	engine := &fakeEngine{
		batches: [][]domain.ExternalTask{
			{testTask("task-1", "bitrix_unknown_action")},
		},
	}
	publisher := &fakePublisher{}

	d := newTestDispatcher(engine, publisher, nil)
	d.Start(context.Background())
	defer d.Stop()

	waitFor(t, 3*time.Second, func() bool { return engine.completedCount() == 1 })

	published := publisher.publishedCalls()
	if published[0].key != "default.bitrix_unknown_action" {
		t.Errorf("unmatched topic must route to default system, got %q", published[0].key)
	}
}

func TestDispatcher_AbandonsTaskWhenExtensionExpired(t *testing.T) {
	task := testTask("task-1", "op_create_task")
	// Lease вот-вот истечёт: продление сработает по минимальному такту
	task.LockExpiration = time.Now().Add(500 * time.Millisecond)

	engine := &fakeEngine{
		batches:   [][]domain.ExternalTask{{task}},
		extendErr: camunda.ErrLockExpired,
	}
	// Публикация висит до отмены — задача mid-flight в момент продления
	publisher := &fakePublisher{blocking: true}

	d := newTestDispatcher(engine, publisher, nil)
	d.Start(context.Background())

	// Ждём попытку продления и abandon
	waitFor(t, 5*time.Second, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.extended) >= 1
	})
	waitFor(t, 3*time.Second, func() bool { return d.InFlight() == 0 })

	d.Stop()

	// Брошенная задача: ни complete, ни fail
	if engine.completedCount() != 0 {
		t.Error("abandoned task must not be completed")
	}
	if len(engine.failedCalls()) != 0 {
		t.Errorf("abandoned task must not be failed: %+v", engine.failedCalls())
	}
}

func TestDispatcher_StopHaltsFetching(t *testing.T) {
	engine := &fakeEngine{}
	publisher := &fakePublisher{}

	d := newTestDispatcher(engine, publisher, nil)
	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	if !d.IsStopped() {
		t.Error("dispatcher must report stopped")
	}
}

func TestNextRetries(t *testing.T) {
	d := newTestDispatcher(&fakeEngine{}, &fakePublisher{}, nil)

	fresh := testTask("t", "x")
	if got := d.nextRetries(&fresh); got != 3 {
		t.Errorf("fresh task retries = %d, want MaxRetries", got)
	}

	two := 2
	fresh.Retries = &two
	if got := d.nextRetries(&fresh); got != 1 {
		t.Errorf("retries = %d, want 1", got)
	}

	zero := 0
	fresh.Retries = &zero
	if got := d.nextRetries(&fresh); got != 0 {
		t.Errorf("retries must not go negative, got %d", got)
	}
}
