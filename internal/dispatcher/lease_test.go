package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLeaseEntry_ReportOnce(t *testing.T) {
	table := newLeaseTable()
	entry := table.Track("task-1", time.Now().Add(time.Minute), nil)

	if err := entry.BeginReport(time.Now()); err != nil {
		t.Fatalf("first report must be allowed: %v", err)
	}

	// Второй отчёт запрещён: задача не может быть одновременно
	// completed и failed.
	if err := entry.BeginReport(time.Now()); !errors.Is(err, ErrAlreadyReported) {
		t.Errorf("second report must fail with ErrAlreadyReported, got %v", err)
	}
}

func TestLeaseEntry_NoReportAfterExpiry(t *testing.T) {
	table := newLeaseTable()
	entry := table.Track("task-1", time.Now().Add(-time.Second), nil)

	if err := entry.BeginReport(time.Now()); !errors.Is(err, ErrLeaseLost) {
		t.Errorf("report after expiry must fail with ErrLeaseLost, got %v", err)
	}
}

func TestLeaseEntry_NoReportAfterAbandon(t *testing.T) {
	cancelled := false
	_, cancel := context.WithCancel(context.Background())
	wrapped := func() {
		cancelled = true
		cancel()
	}

	table := newLeaseTable()
	entry := table.Track("task-1", time.Now().Add(time.Minute), wrapped)

	if !entry.Abandon() {
		t.Fatal("first abandon must succeed")
	}
	if !cancelled {
		t.Error("abandon must cancel the task context")
	}

	if err := entry.BeginReport(time.Now()); !errors.Is(err, ErrTaskAbandoned) {
		t.Errorf("report after abandon must fail with ErrTaskAbandoned, got %v", err)
	}

	// Повторный abandon — no-op
	if entry.Abandon() {
		t.Error("second abandon must return false")
	}
}

func TestLeaseEntry_AbandonAfterReportIsNoop(t *testing.T) {
	table := newLeaseTable()
	entry := table.Track("task-1", time.Now().Add(time.Minute), nil)

	if err := entry.BeginReport(time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.Abandon() {
		t.Error("abandon after report must return false")
	}
	if entry.Active() {
		t.Error("reported entry must not be active")
	}
}

func TestLeaseEntry_ExtendMovesExpiry(t *testing.T) {
	table := newLeaseTable()
	entry := table.Track("task-1", time.Now().Add(-time.Second), nil)

	// Lease истёк, но успешный extendLock возвращает задачу в строй
	newExpiry := time.Now().Add(time.Minute)
	entry.Extend(newExpiry)

	if !entry.Expiry().Equal(newExpiry) {
		t.Errorf("expiry not updated: %v", entry.Expiry())
	}
	if err := entry.BeginReport(time.Now()); err != nil {
		t.Errorf("report after extension must be allowed: %v", err)
	}
}

func TestLeaseTable_TrackRemove(t *testing.T) {
	table := newLeaseTable()

	table.Track("task-1", time.Now().Add(time.Minute), nil)
	table.Track("task-2", time.Now().Add(time.Minute), nil)

	if table.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", table.Len())
	}

	table.Remove("task-1")
	if table.Len() != 1 {
		t.Errorf("expected 1 entry after remove, got %d", table.Len())
	}
}
