package processor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amekhanov/bpmbridge/internal/mq"
)

// Handler — обработчик сообщений одной целевой системы.
// Ошибка отправляет сообщение в dead-letter, успех — подтверждает.
type Handler func(ctx context.Context, msg *mq.TaskMessage) error

// Registry — реестр обработчиков по имени очереди.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register привязывает обработчик к очереди.
// Повторная регистрация очереди — ошибка конфигурации.
func (r *Registry) Register(queue string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[queue]; exists {
		return fmt.Errorf("handler for queue %s already registered: %w", queue, ErrDuplicateHandler)
	}

	r.handlers[queue] = handler
	return nil
}

// Get возвращает обработчик очереди.
func (r *Registry) Get(queue string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[queue]
	if !ok {
		return nil, fmt.Errorf("queue %s: %w", queue, ErrNoHandler)
	}
	return handler, nil
}

// Queues возвращает очереди с зарегистрированными обработчиками
// в стабильном порядке.
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queues := make([]string, 0, len(r.handlers))
	for queue := range r.handlers {
		queues = append(queues, queue)
	}
	sort.Strings(queues)
	return queues
}
