// Package processor — симметричная половина моста: потребление
// очередей целевых систем.
//
// На каждую очередь из реестра запускается consumer с prefetch,
// равным конкурентности обработчика: неподтверждённых сообщений
// никогда не больше, чем обработчик способен переварить. Ошибка
// обработчика — nack без requeue (dead-letter), успех — ровно
// один ack.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/amekhanov/bpmbridge/internal/mq"
	"github.com/amekhanov/bpmbridge/internal/telemetry"
)

// defaultConcurrency — prefetch по умолчанию на очередь.
const defaultConcurrency = 5

// Processor управляет consumer'ами очередей целевых систем.
type Processor struct {
	conn     *mq.Connection
	registry *Registry

	concurrency int

	consumers []*mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Processor.
type Config struct {
	// Conn — соединение с брокером.
	Conn *mq.Connection

	// Registry — обработчики по очередям.
	Registry *Registry

	// Concurrency — prefetch на очередь (default: 5).
	Concurrency int

	// Logger
	Logger *slog.Logger
}

// New создаёт Processor.
func New(cfg Config) *Processor {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		conn:        cfg.Conn,
		registry:    cfg.Registry,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start запускает consumer для каждой очереди из реестра.
func (p *Processor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel

	queues := p.registry.Queues()
	if len(queues) == 0 {
		return ErrNoHandler
	}

	p.logger.Info("starting processor",
		"queues", queues,
		"concurrency", p.concurrency,
	)

	for _, queue := range queues {
		qlogger := telemetry.WithQueue(p.logger, queue)
		consumer := mq.NewConsumer(p.conn, qlogger, mq.ConsumerConfig{
			Queue:    queue,
			Handler:  p.dispatchHandler(queue),
			Prefetch: p.concurrency,
		})
		p.consumers = append(p.consumers, consumer)

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				qlogger.Error("consumer error", "error", err)
			}
		}()
	}

	p.logger.Info("processor started")
	return nil
}

// Stop останавливает все consumer'ы.
func (p *Processor) Stop() {
	p.stoppedMu.Lock()
	p.stopped = true
	p.stoppedMu.Unlock()

	p.logger.Info("stopping processor...")

	if p.cancelFunc != nil {
		p.cancelFunc()
	}

	for _, consumer := range p.consumers {
		consumer.Stop()
	}

	p.wg.Wait()

	p.logger.Info("processor stopped")
}

// IsStopped проверяет, остановлен ли Processor.
func (p *Processor) IsStopped() bool {
	p.stoppedMu.RLock()
	defer p.stoppedMu.RUnlock()
	return p.stopped
}

// dispatchHandler заворачивает обработчик очереди в mq.Handler
// с метриками. Ошибка обработчика поднимается наверх — consumer
// отправит сообщение в dead-letter.
func (p *Processor) dispatchHandler(queue string) mq.Handler {
	return func(ctx context.Context, delivery *mq.Delivery) error {
		handler, err := p.registry.Get(queue)
		if err != nil {
			// Реестр фиксируется до старта; сюда попадаем только при
			// нарушении этого контракта.
			telemetry.MessagesDeadLettered.WithLabelValues(queue).Inc()
			return err
		}

		if err := handler(ctx, &delivery.Message); err != nil {
			telemetry.MessagesDeadLettered.WithLabelValues(queue).Inc()
			return err
		}

		telemetry.MessagesConsumed.WithLabelValues(queue).Inc()
		return nil
	}
}
