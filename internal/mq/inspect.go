package mq

import (
	"context"
	"fmt"

	"github.com/amekhanov/bpmbridge/internal/config"
	"github.com/amekhanov/bpmbridge/internal/domain"
)

// Inspector — интроспекция очередей брокера.
//
// Снимки строятся по запросу через passive declare и никогда не
// персистятся. Каждый запрос выполняется на отдельном канале:
// passive declare несуществующей очереди закрывает канал.
type Inspector struct {
	conn   *Connection
	queues []string
}

// NewInspector создаёт Inspector для очередей из конфигурации
// маршрутизации (очереди систем и их DLQ).
func NewInspector(conn *Connection, cfg config.Routing) *Inspector {
	queues := make([]string, 0, len(cfg.Queues)*2)
	for _, queue := range cfg.Queues {
		queues = append(queues, queue, DLQName(queue))
	}

	return &Inspector{
		conn:   conn,
		queues: queues,
	}
}

// InspectQueue возвращает снимок одной очереди.
func (i *Inspector) InspectQueue(ctx context.Context, name string) (domain.QueueInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.QueueInfo{}, err
	}

	ch, err := i.conn.OpenChannel()
	if err != nil {
		return domain.QueueInfo{}, err
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(name, true, false, false, false, nil)
	if err != nil {
		return domain.QueueInfo{}, fmt.Errorf("inspect queue %s: %w", name, err)
	}

	source := domain.QueueSourceDirect
	if name == string(QueueUnrouted) {
		source = domain.QueueSourceAlternate
	}

	return domain.QueueInfo{
		Queue:     q.Name,
		Messages:  q.Messages,
		Consumers: q.Consumers,
		Source:    source,
	}, nil
}

// ListQueues возвращает снимки всех настроенных очередей,
// включая очередь alternate exchange.
func (i *Inspector) ListQueues(ctx context.Context) ([]domain.QueueInfo, error) {
	infos := make([]domain.QueueInfo, 0, len(i.queues)+1)

	for _, name := range i.queues {
		info, err := i.InspectQueue(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	alt, err := i.AlternateExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	infos = append(infos, alt)

	return infos, nil
}

// AlternateExchangeInfo возвращает снимок очереди catch-all.
// Ненулевой счётчик сообщений означает, что кто-то публикует ключи,
// не совпадающие ни с одним binding.
func (i *Inspector) AlternateExchangeInfo(ctx context.Context) (domain.QueueInfo, error) {
	return i.InspectQueue(ctx, string(QueueUnrouted))
}
