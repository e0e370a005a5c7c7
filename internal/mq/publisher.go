package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/amekhanov/bpmbridge/internal/domain"
)

// TaskMessage — сообщение моста для целевой системы.
//
// Payload переносится как есть: мост маршрутизирует и отчитывается,
// но не интерпретирует переменные.
type TaskMessage struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// TaskID — идентификатор external task в движке.
	TaskID string `json:"task_id"`

	// Topic — topic задачи.
	Topic string `json:"topic"`

	// BusinessKey — бизнес-ключ экземпляра процесса.
	BusinessKey string `json:"business_key,omitempty"`

	// ProcessInstanceID — экземпляр процесса.
	ProcessInstanceID string `json:"process_instance_id"`

	// Variables — переменные процесса.
	Variables domain.Variables `json:"variables,omitempty"`

	// EnqueuedAt — время публикации мостом.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTaskMessage строит сообщение из задачи движка.
func NewTaskMessage(task *domain.ExternalTask) *TaskMessage {
	return &TaskMessage{
		ID:                uuid.New().String(),
		TaskID:            task.ID,
		Topic:             task.Topic,
		BusinessKey:       task.BusinessKey,
		ProcessInstanceID: task.ProcessInstanceID,
		Variables:         task.Variables,
		EnqueuedAt:        time.Now().UTC(),
	}
}

// Publisher публикует сообщения в основной exchange с подтверждением
// доставки (publisher confirms).
//
// Канал публикации один на соединение, поэтому конкурентные публикации
// сериализуются мьютексом: перемешанные кадры на одном AMQP-канале
// ломают состояние протокола.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger

	mu sync.Mutex
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение с указанным routing key и блокируется
// до подтверждения брокером.
//
// Если соединения нет, возвращает ErrBrokerUnavailable сразу, без
// ожидания reconnect — задача должна вернуться в движок через fail,
// а не зависнуть в неопределённости.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg *TaskMessage) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("publish %s: %w", routingKey, ErrBrokerUnavailable)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("publish %s: %w", routingKey, ErrBrokerUnavailable)
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		string(ExchangeTasks), // exchange
		routingKey,            // routing key
		false,                 // mandatory (несовпавшие ловит alternate exchange)
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт брокера
			MessageId:    msg.ID,
			Timestamp:    msg.EnqueuedAt,
			Type:         msg.Topic,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w: %v", routingKey, ErrBrokerUnavailable, err)
	}

	// Успех — только после подтверждения брокером.
	select {
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", routingKey, ctx.Err())
	case <-confirmation.Done():
		if !confirmation.Acked() {
			return fmt.Errorf("publish %s: %w", routingKey, ErrPublishNacked)
		}
	}

	p.logger.Debug("published message",
		"routing_key", routingKey,
		"message_id", msg.ID,
		"task_id", msg.TaskID,
	)

	return nil
}
