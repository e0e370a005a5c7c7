package dispatcher

import (
	"context"
	"sync"
	"time"
)

// leaseEntry — локальное состояние lease одной задачи.
//
// Гарантирует инвариант: задача отчитывается не более одного раза
// (complete ЛИБО fail), и никогда после локального истечения lease.
type leaseEntry struct {
	taskID string

	mu        sync.Mutex
	expiry    time.Time
	reported  bool
	abandoned bool

	// cancel останавливает обработку задачи при потере lease.
	cancel context.CancelFunc
}

// BeginReport резервирует право на единственный отчёт по задаче.
//
// Ошибка означает, что отчитываться нельзя: задача уже отчитана,
// брошена или lease истёк локально. Движок — финальный арбитр, но
// локальная проверка экономит заведомо бесполезный вызов.
func (e *leaseEntry) BeginReport(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.reported:
		return ErrAlreadyReported
	case e.abandoned:
		return ErrTaskAbandoned
	case !e.expiry.IsZero() && !now.Before(e.expiry):
		return ErrLeaseLost
	}

	e.reported = true
	return nil
}

// Extend сдвигает локальный срок lease после успешного extendLock.
func (e *leaseEntry) Extend(newExpiry time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expiry = newExpiry
}

// Expiry возвращает текущий локальный срок lease.
func (e *leaseEntry) Expiry() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expiry
}

// Abandon бросает задачу: отменяет её обработку и запрещает отчёты.
// Идемпотентен. Возвращает false, если задача уже отчитана или брошена.
func (e *leaseEntry) Abandon() bool {
	e.mu.Lock()
	if e.reported || e.abandoned {
		e.mu.Unlock()
		return false
	}
	e.abandoned = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// Active сообщает, можно ли ещё продлевать lease.
func (e *leaseEntry) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.reported && !e.abandoned
}

// leaseTable — реестр задач, находящихся в обработке.
type leaseTable struct {
	mu      sync.Mutex
	entries map[string]*leaseEntry
}

func newLeaseTable() *leaseTable {
	return &leaseTable{entries: make(map[string]*leaseEntry)}
}

// Track регистрирует задачу. Повторный захват той же задачи движком
// (после истечения lease) перетирает устаревшую запись.
func (t *leaseTable) Track(taskID string, expiry time.Time, cancel context.CancelFunc) *leaseEntry {
	entry := &leaseEntry{
		taskID: taskID,
		expiry: expiry,
		cancel: cancel,
	}

	t.mu.Lock()
	t.entries[taskID] = entry
	t.mu.Unlock()

	return entry
}

// Remove снимает задачу с учёта.
func (t *leaseTable) Remove(taskID string) {
	t.mu.Lock()
	delete(t.entries, taskID)
	t.mu.Unlock()
}

// Len возвращает количество задач в обработке.
func (t *leaseTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
