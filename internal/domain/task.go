package domain

import "time"

// Variable — типизированная переменная процесса.
//
// Движок хранит переменные вместе с типом ("String", "Integer", "Json"...),
// мост их не интерпретирует — только переносит.
type Variable struct {
	// Value — значение переменной.
	Value any `json:"value"`

	// Type — тип переменной в терминах движка.
	Type string `json:"type,omitempty"`
}

// Variables — набор переменных процесса по имени.
type Variables map[string]Variable

// ExternalTask — единица работы, предложенная движком для эксклюзивной
// обработки воркером.
//
// Task создаётся движком при fetchAndLock и принадлежит мосту
// до completion, failure или истечения lease.
type ExternalTask struct {
	// ID — уникальный идентификатор задачи в движке.
	ID string `json:"id"`

	// Topic — topic, по которому задача была получена.
	Topic string `json:"topicName"`

	// ProcessInstanceID — экземпляр процесса, породивший задачу.
	ProcessInstanceID string `json:"processInstanceId"`

	// BusinessKey — бизнес-ключ экземпляра процесса.
	BusinessKey string `json:"businessKey,omitempty"`

	// Variables — переменные процесса, запрошенные при fetchAndLock.
	Variables Variables `json:"variables,omitempty"`

	// Retries — оставшиеся попытки. nil — задача ещё ни разу не падала.
	Retries *int `json:"retries"`

	// LockExpiration — момент истечения lease (локальные часы движка).
	LockExpiration time.Time `json:"-"`

	// WorkerID — идентификатор воркера, удерживающего lock.
	WorkerID string `json:"workerId,omitempty"`
}

// LockExpired сообщает, истёк ли lease по локальным часам.
// Финальный арбитр — движок; локальная проверка лишь экономит
// заведомо бесполезный вызов.
func (t *ExternalTask) LockExpired(now time.Time) bool {
	return !t.LockExpiration.IsZero() && !now.Before(t.LockExpiration)
}
