package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/amekhanov/bpmbridge/internal/camunda"
	"github.com/amekhanov/bpmbridge/internal/domain"
	"github.com/amekhanov/bpmbridge/internal/journal"
	"github.com/amekhanov/bpmbridge/internal/mq"
	"github.com/amekhanov/bpmbridge/internal/routing"
	"github.com/amekhanov/bpmbridge/internal/telemetry"
)

// Default configuration values.
const (
	defaultMaxTasks     = 10
	defaultLockDuration = 30 * time.Second
	defaultFetchTimeout = 20 * time.Second
	defaultMaxRetries   = 3
	defaultRetryBase    = 5 * time.Second
	defaultGrace        = 30 * time.Second

	// healthRetryTimeout — короткий retry для задач, чья целевая
	// система в состоянии error: быстрый повтор без busy-loop движка.
	healthRetryTimeout = 10 * time.Second

	// reportTimeout — бюджет одного отчёта complete/fail.
	reportTimeout = 10 * time.Second

	// maxFetchBackoff — потолок задержки между fetch при недоступном движке.
	maxFetchBackoff = 30 * time.Second

	// maxRetryTimeout — потолок экспоненциального retryTimeout.
	maxRetryTimeout = 5 * time.Minute
)

// Engine — операции движка, нужные dispatch-циклу.
// Реализуется camunda.Client.
type Engine interface {
	FetchAndLock(ctx context.Context, topics []string, maxTasks int, lockDuration, fetchTimeout time.Duration) ([]domain.ExternalTask, error)
	Complete(ctx context.Context, taskID string, variables domain.Variables) error
	Fail(ctx context.Context, taskID, errorMessage string, retries int, retryTimeout time.Duration) error
	ExtendLock(ctx context.Context, taskID string, newDuration time.Duration) error
}

// Publisher — публикация в брокер. Реализуется mq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg *mq.TaskMessage) error
}

// StatusFeed — статусы целевых систем. Реализуется health.Monitor.
type StatusFeed interface {
	StatusFor(system string) (domain.SystemStatus, bool)
}

// Recorder — журнал исходов. Реализуется journal.Journal.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Dispatcher — координирующий цикл моста.
//
// Один логический цикл: fetchAndLock у движка → маршрутизация по
// topic'у → публикация в брокер с подтверждением → complete/fail
// обратно в движок. Обработка захваченных задач идёт параллельно
// в пуле размером MaxTasks; lease каждой задачи продлевается фоном
// до завершения обработки.
type Dispatcher struct {
	engine    Engine
	publisher Publisher
	table     *routing.Table
	statuses  StatusFeed
	journal   Recorder

	topics       []string
	maxTasks     int
	lockDuration time.Duration
	fetchTimeout time.Duration
	maxRetries   int
	retryBase    time.Duration
	grace        time.Duration

	leases *leaseTable
	sem    chan struct{}

	// Lifecycle
	logger      *slog.Logger
	fetchCancel context.CancelFunc
	taskCtx     context.Context
	taskCancel  context.CancelFunc
	wg          sync.WaitGroup
	stopped     bool
	stoppedMu   sync.RWMutex
}

// Config — конфигурация Dispatcher.
type Config struct {
	// Engine — клиент движка (обязателен).
	Engine Engine

	// Publisher — издатель брокера (обязателен).
	Publisher Publisher

	// Table — таблица маршрутизации (обязательна).
	Table *routing.Table

	// Statuses — статусы систем (опционально; nil — health gate выключен).
	Statuses StatusFeed

	// Journal — журнал исходов (опционально).
	Journal Recorder

	// Topics — topic'и подписки.
	Topics []string

	// MaxTasks — размер пула обработки и лимит fetchAndLock (default: 10).
	MaxTasks int

	// LockDuration — длительность lease (default: 30s).
	LockDuration time.Duration

	// FetchTimeout — long-poll таймаут (default: 20s).
	FetchTimeout time.Duration

	// MaxRetries — попытки задачи до терминального инцидента (default: 3).
	MaxRetries int

	// RetryBase — базовая задержка retry, растёт экспоненциально (default: 5s).
	RetryBase time.Duration

	// Grace — сколько ждать in-flight задачи при остановке (default: 30s).
	Grace time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = defaultMaxTasks
	}

	lockDuration := cfg.LockDuration
	if lockDuration <= 0 {
		lockDuration = defaultLockDuration
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}

	grace := cfg.Grace
	if grace <= 0 {
		grace = defaultGrace
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		engine:       cfg.Engine,
		publisher:    cfg.Publisher,
		table:        cfg.Table,
		statuses:     cfg.Statuses,
		journal:      cfg.Journal,
		topics:       cfg.Topics,
		maxTasks:     maxTasks,
		lockDuration: lockDuration,
		fetchTimeout: fetchTimeout,
		maxRetries:   maxRetries,
		retryBase:    retryBase,
		grace:        grace,
		leases:       newLeaseTable(),
		sem:          make(chan struct{}, maxTasks),
		logger:       logger,
	}
}

// Start запускает fetch-цикл.
//
// Обработка задач живёт в собственном контексте: отмена ctx (сигнал)
// немедленно прекращает новые fetchAndLock, но in-flight задачи
// дорабатывают до Stop().
func (d *Dispatcher) Start(ctx context.Context) error {
	fetchCtx, fetchCancel := context.WithCancel(ctx)
	d.fetchCancel = fetchCancel

	d.taskCtx, d.taskCancel = context.WithCancel(context.Background())

	d.logger.Info("starting dispatcher",
		"topics", d.topics,
		"max_tasks", d.maxTasks,
		"lock_duration", d.lockDuration,
	)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.fetchLoop(fetchCtx)
	}()

	d.logger.Info("dispatcher started")
	return nil
}

// Stop останавливает Dispatcher.
//
// Новые fetchAndLock прекращаются сразу, in-flight задачам даётся
// grace-период на завершение отчётов, после чего их контекст
// закрывается принудительно.
func (d *Dispatcher) Stop() {
	d.stoppedMu.Lock()
	d.stopped = true
	d.stoppedMu.Unlock()

	d.logger.Info("stopping dispatcher...", "in_flight", d.leases.Len())

	if d.fetchCancel != nil {
		d.fetchCancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.grace):
		d.logger.Warn("grace period expired, forcing shutdown", "in_flight", d.leases.Len())
	}

	if d.taskCancel != nil {
		d.taskCancel()
	}
	<-done

	d.logger.Info("dispatcher stopped")
}

// IsStopped проверяет, остановлен ли Dispatcher.
func (d *Dispatcher) IsStopped() bool {
	d.stoppedMu.RLock()
	defer d.stoppedMu.RUnlock()
	return d.stopped
}

// InFlight возвращает количество задач в обработке.
func (d *Dispatcher) InFlight() int {
	return d.leases.Len()
}

// fetchLoop — основной цикл захвата задач.
func (d *Dispatcher) fetchLoop(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tasks, err := d.engine.FetchAndLock(ctx, d.topics, d.maxTasks, d.lockDuration, d.fetchTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			if errors.Is(err, camunda.ErrEngineUnavailable) {
				d.logger.Warn("engine unavailable, backing off",
					"backoff", backoff,
					"error", err,
				)
			} else {
				d.logger.Error("fetchAndLock failed", "error", err)
			}

			d.sleep(ctx, withJitter(backoff))
			backoff = min(backoff*2, maxFetchBackoff)
			continue
		}

		backoff = time.Second

		for i := range tasks {
			if !d.dispatch(ctx, tasks[i]) {
				return
			}
		}
	}
}

// dispatch передаёт задачу в пул обработки.
// false — shutdown начался до постановки задачи.
func (d *Dispatcher) dispatch(ctx context.Context, task domain.ExternalTask) bool {
	telemetry.TasksFetched.Inc()

	select {
	case <-ctx.Done():
		// Задачу не берём: её lease истечёт и движок переназначит.
		return false
	case d.sem <- struct{}{}:
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		d.process(task)
	}()

	return true
}

// process — обработка одной задачи: маршрут → health gate →
// публикация → отчёт.
func (d *Dispatcher) process(task domain.ExternalTask) {
	ctx, cancel := context.WithCancel(d.taskCtx)
	defer cancel()

	entry := d.leases.Track(task.ID, task.LockExpiration, cancel)
	defer d.leases.Remove(task.ID)

	// Фоновое продление lease на время обработки
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.renewLoop(ctx, entry)
	}()

	logger := telemetry.WithTopic(telemetry.WithTaskID(d.logger, task.ID), task.Topic)

	route := d.table.Resolve(task.Topic)
	if route.System == "" || route.Queue == "" {
		// По построению таблицы невозможно
		logger.Error("routing invariant violated", "route", route)
		d.failTask(task, entry, route, ErrRoutingUnresolved.Error(), healthRetryTimeout, "routing_unresolved", logger)
		return
	}

	logger = telemetry.WithSystem(logger, route.System)

	// Lease мог истечь, пока задача ждала слот в пуле.
	if task.LockExpired(time.Now()) {
		entry.Abandon()
		d.abandoned(task, route, camunda.ErrLockExpired, logger)
		return
	}

	// Health gate: в мёртвую систему не публикуем, задачу возвращаем
	// движку с коротким retry.
	if d.statuses != nil {
		if status, ok := d.statuses.StatusFor(route.System); ok && status.State == domain.SystemError {
			logger.Warn("target system in error state, failing task fast",
				"last_error", status.LastError,
			)
			d.failTask(task, entry, route, "target system "+route.System+" unavailable: "+status.LastError, healthRetryTimeout, "system_error", logger)
			return
		}
	}

	msg := mq.NewTaskMessage(&task)
	if err := d.publisher.Publish(ctx, route.Key, msg); err != nil {
		telemetry.PublishFailures.Inc()

		if ctx.Err() != nil {
			// Обработка отменена (потеря lease или shutdown) — не отчитываемся
			logger.Debug("publish cancelled", "error", err)
			return
		}

		reason := "publish_failed"
		if errors.Is(err, mq.ErrBrokerUnavailable) {
			reason = "broker_unavailable"
		}

		logger.Warn("publish failed, failing task", "error", err)
		d.failTask(task, entry, route, err.Error(), d.retryTimeout(&task), reason, logger)
		return
	}

	// Fire-and-forget: подтверждение доставки получено, дальнейшая
	// судьба сообщения — ответственность consumer'а.
	d.completeTask(task, entry, route, logger)
}

// completeTask отчитывается об успехе.
func (d *Dispatcher) completeTask(task domain.ExternalTask, entry *leaseEntry, route routing.Route, logger *slog.Logger) {
	if err := entry.BeginReport(time.Now()); err != nil {
		d.abandoned(task, route, err, logger)
		return
	}

	ctx, cancel := context.WithTimeout(d.taskCtx, reportTimeout)
	defer cancel()

	if err := d.engine.Complete(ctx, task.ID, nil); err != nil {
		if errors.Is(err, camunda.ErrTaskNotFound) {
			// Движок уже отдал задачу другому воркеру: сообщение
			// опубликовано, возможен дубликат — semantics at-least-once.
			d.abandoned(task, route, err, logger)
			return
		}
		// Отчёт не дошёл: lease истечёт, движок предложит задачу снова.
		logger.Warn("complete report failed", "error", err)
		return
	}

	telemetry.TasksCompleted.Inc()
	logger.Info("task dispatched", "queue", route.Queue, "routing_key", route.Key)

	d.record(journal.Entry{
		TaskID:  task.ID,
		Topic:   task.Topic,
		System:  route.System,
		Queue:   route.Queue,
		Outcome: journal.OutcomeCompleted,
	})
}

// failTask отчитывается об ошибке с retry-семантикой движка.
func (d *Dispatcher) failTask(task domain.ExternalTask, entry *leaseEntry, route routing.Route, errMsg string, retryTimeout time.Duration, reason string, logger *slog.Logger) {
	if err := entry.BeginReport(time.Now()); err != nil {
		d.abandoned(task, route, err, logger)
		return
	}

	retries := d.nextRetries(&task)

	ctx, cancel := context.WithTimeout(d.taskCtx, reportTimeout)
	defer cancel()

	if err := d.engine.Fail(ctx, task.ID, errMsg, retries, retryTimeout); err != nil {
		if errors.Is(err, camunda.ErrTaskNotFound) {
			d.abandoned(task, route, err, logger)
			return
		}
		logger.Warn("failure report failed", "error", err)
		return
	}

	telemetry.TasksFailed.WithLabelValues(reason).Inc()

	if retries == 0 {
		// Терминальный инцидент: движок больше не предложит задачу,
		// дальше — внимание оператора.
		logger.Error("task failed terminally, incident raised",
			"reason", reason,
			"error", errMsg,
		)
	} else {
		logger.Warn("task failed, will be retried",
			"reason", reason,
			"retries_left", retries,
			"retry_timeout", retryTimeout,
		)
	}

	d.record(journal.Entry{
		TaskID:  task.ID,
		Topic:   task.Topic,
		System:  route.System,
		Queue:   route.Queue,
		Outcome: journal.OutcomeFailed,
		Error:   errMsg,
	})
}

// abandoned фиксирует брошенную задачу: lease потерян, движок уже
// распоряжается задачей сам.
func (d *Dispatcher) abandoned(task domain.ExternalTask, route routing.Route, cause error, logger *slog.Logger) {
	telemetry.TasksAbandoned.Inc()
	logger.Warn("task abandoned", "cause", cause)

	d.record(journal.Entry{
		TaskID:  task.ID,
		Topic:   task.Topic,
		System:  route.System,
		Queue:   route.Queue,
		Outcome: journal.OutcomeAbandoned,
		Error:   cause.Error(),
	})
}

// renewLoop продлевает lease задачи, пока она в обработке.
//
// Продление планируется на 2/3 срока lease. Неудачное продление —
// задача переназначена или движок недоступен — бросает задачу:
// локальное состояние отменяется, отчёты подавляются.
func (d *Dispatcher) renewLoop(ctx context.Context, entry *leaseEntry) {
	for {
		if !entry.Active() {
			return
		}

		wait := d.lockDuration * 2 / 3
		if expiry := entry.Expiry(); !expiry.IsZero() {
			wait = time.Until(expiry) - d.lockDuration/3
			if wait < time.Second {
				wait = time.Second
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if !entry.Active() {
			return
		}

		if err := d.engine.ExtendLock(ctx, entry.taskID, d.lockDuration); err != nil {
			if ctx.Err() != nil {
				return
			}

			result := "error"
			if errors.Is(err, camunda.ErrLockExpired) {
				result = "expired"
			}
			telemetry.LeaseExtensions.WithLabelValues(result).Inc()

			d.logger.Warn("lock extension failed, abandoning task",
				"task_id", entry.taskID,
				"error", err,
			)

			if entry.Abandon() {
				telemetry.TasksAbandoned.Inc()
			}
			return
		}

		telemetry.LeaseExtensions.WithLabelValues("ok").Inc()
		entry.Extend(time.Now().Add(d.lockDuration))

		d.logger.Debug("lock extended", "task_id", entry.taskID)
	}
}

// nextRetries вычисляет retries для отчёта failure.
// nil у свежей задачи — начинаем с MaxRetries; дальше движок хранит
// остаток, и каждый следующий отчёт уменьшает его на единицу.
func (d *Dispatcher) nextRetries(task *domain.ExternalTask) int {
	if task.Retries == nil {
		return d.maxRetries
	}
	if *task.Retries <= 0 {
		return 0
	}
	return *task.Retries - 1
}

// retryTimeout вычисляет экспоненциальную задержку retry по числу
// уже истраченных попыток.
func (d *Dispatcher) retryTimeout(task *domain.ExternalTask) time.Duration {
	used := d.maxRetries - d.nextRetries(task)

	timeout := d.retryBase
	for i := 0; i < used; i++ {
		timeout *= 2
		if timeout >= maxRetryTimeout {
			return maxRetryTimeout
		}
	}
	return timeout
}

// record пишет исход в журнал, если журнал настроен.
func (d *Dispatcher) record(e journal.Entry) {
	if d.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.journal.Record(ctx, e); err != nil {
		d.logger.Warn("journal record failed", "task_id", e.TaskID, "error", err)
	}
}

// sleep ждёт d или отмены контекста.
func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(dur):
	}
}

// withJitter добавляет случайный разброс до +25% к задержке.
func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}
