// Package health следит за состоянием целевых систем.
//
// Monitor периодически проверяет очередь каждой системы через
// интроспекцию брокера и публикует снимки SystemStatus. Dispatch-цикл
// читает их, чтобы не публиковать в заведомо мёртвые очереди.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amekhanov/bpmbridge/internal/config"
	"github.com/amekhanov/bpmbridge/internal/domain"
)

// QueueProber — источник снимков очередей.
// Реализуется mq.Inspector; в тестах подменяется фейком.
type QueueProber interface {
	InspectQueue(ctx context.Context, name string) (domain.QueueInfo, error)
}

// probeTimeout — бюджет одной проверки очереди.
const probeTimeout = 5 * time.Second

// Monitor выполняет периодические проверки систем.
type Monitor struct {
	prober QueueProber
	logger *slog.Logger

	// система → очередь, описания
	queues       map[string]string
	descriptions map[string]string

	interval time.Duration

	mu       sync.RWMutex
	statuses map[string]domain.SystemStatus

	cron *cron.Cron
}

// New создаёт Monitor по конфигурации маршрутизации.
func New(prober QueueProber, cfg config.Routing, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	queues := make(map[string]string, len(cfg.Queues))
	for system, queue := range cfg.Queues {
		queues[system] = queue
	}

	descriptions := make(map[string]string, len(cfg.Descriptions))
	for system, desc := range cfg.Descriptions {
		descriptions[system] = desc
	}

	return &Monitor{
		prober:       prober,
		logger:       logger,
		queues:       queues,
		descriptions: descriptions,
		interval:     interval,
		statuses:     make(map[string]domain.SystemStatus, len(queues)),
	}
}

// Start выполняет первую проверку синхронно и запускает периодические.
func (m *Monitor) Start(ctx context.Context) error {
	// До первой проверки dispatch-цикл не должен видеть ложные error
	m.CheckNow(ctx)

	m.cron = cron.New()
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.interval), func() {
		checkCtx, cancel := context.WithTimeout(ctx, m.interval)
		defer cancel()
		m.CheckNow(checkCtx)
	})
	if err != nil {
		return fmt.Errorf("schedule health checks: %w", err)
	}

	m.cron.Start()
	m.logger.Info("health monitor started", "interval", m.interval, "systems", len(m.queues))

	return nil
}

// Stop останавливает периодические проверки.
func (m *Monitor) Stop() {
	if m.cron != nil {
		// Дожидаемся завершения текущей проверки
		<-m.cron.Stop().Done()
	}
	m.logger.Info("health monitor stopped")
}

// CheckNow проверяет все системы немедленно.
func (m *Monitor) CheckNow(ctx context.Context) {
	for system, queue := range m.queues {
		status := m.checkSystem(ctx, system, queue)

		m.mu.Lock()
		m.statuses[system] = status
		m.mu.Unlock()

		if status.State != domain.SystemActive {
			m.logger.Warn("system is not healthy",
				"system", system,
				"queue", queue,
				"state", status.State,
				"error", status.LastError,
			)
		}
	}
}

// checkSystem проверяет одну систему по её очереди.
func (m *Monitor) checkSystem(ctx context.Context, system, queue string) domain.SystemStatus {
	status := domain.SystemStatus{
		System:      system,
		Queue:       queue,
		Description: m.descriptions[system],
		CheckedAt:   time.Now().UTC(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := m.prober.InspectQueue(probeCtx, queue)
	switch {
	case err != nil:
		status.State = domain.SystemError
		status.LastError = err.Error()
	case info.Consumers == 0:
		// Очередь жива, но никто не читает — сообщения будут копиться
		status.State = domain.SystemDegraded
	default:
		status.State = domain.SystemActive
	}

	return status
}

// StatusFor возвращает статус системы.
// Для неизвестной системы ok == false.
func (m *Monitor) StatusFor(system string) (domain.SystemStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[system]
	return status, ok
}

// Statuses возвращает снимок статусов всех систем.
func (m *Monitor) Statuses() []domain.SystemStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SystemStatus, 0, len(m.statuses))
	for _, status := range m.statuses {
		out = append(out, status)
	}
	return out
}
