package api

import (
	"context"
	"log/slog"

	"github.com/amekhanov/bpmbridge/internal/config"
	"github.com/amekhanov/bpmbridge/internal/domain"
	"github.com/amekhanov/bpmbridge/internal/journal"
	"github.com/amekhanov/bpmbridge/internal/routing"
)

// QueueLister — источник снимков очередей брокера.
type QueueLister interface {
	ListQueues(ctx context.Context) ([]domain.QueueInfo, error)
	AlternateExchangeInfo(ctx context.Context) (domain.QueueInfo, error)
}

// StatusSource — источник статусов целевых систем.
type StatusSource interface {
	Statuses() []domain.SystemStatus
}

// JournalReader — чтение журнала диспетчеризации.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	routingCfg config.Routing
	table      *routing.Table
	queues     QueueLister
	statuses   StatusSource
	journal    JournalReader
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	RoutingConfig config.Routing
	Table         *routing.Table
	Queues        QueueLister
	Statuses      StatusSource

	// Journal опционален: nil, если БД журнала не настроена.
	Journal JournalReader

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		routingCfg: cfg.RoutingConfig,
		table:      cfg.Table,
		queues:     cfg.Queues,
		statuses:   cfg.Statuses,
		journal:    cfg.Journal,
		logger:     cfg.Logger,
	}
}
