package domain

import "time"

// SystemState — состояние целевой системы.
//
// Жизненный цикл:
//
//	ACTIVE ⇄ DEGRADED ⇄ ERROR
//
// Состояние обновляется health monitor'ом по результатам проверок очередей.
type SystemState string

const (
	// SystemActive — очередь доступна, есть потребители.
	SystemActive SystemState = "active"

	// SystemDegraded — очередь доступна, но без потребителей
	// (сообщения будут копиться).
	SystemDegraded SystemState = "degraded"

	// SystemError — очередь недоступна, публиковать бессмысленно.
	SystemError SystemState = "error"
)

// SystemStatus — снимок состояния целевой системы.
// Мутируется только health monitor'ом, читается dispatch-циклом.
type SystemStatus struct {
	// System — имя целевой системы.
	System string `json:"system"`

	// Queue — очередь системы в брокере.
	Queue string `json:"queue"`

	// Description — человекочитаемое описание системы.
	Description string `json:"description,omitempty"`

	// State — текущее состояние.
	State SystemState `json:"state"`

	// LastError — текст последней ошибки проверки.
	LastError string `json:"last_error,omitempty"`

	// CheckedAt — время последней проверки.
	CheckedAt time.Time `json:"checked_at"`
}

// QueueSource — происхождение очереди в снимке интроспекции.
type QueueSource string

const (
	// QueueSourceDirect — очередь привязана к основному exchange.
	QueueSourceDirect QueueSource = "direct"

	// QueueSourceAlternate — очередь alternate exchange (catch-all).
	QueueSourceAlternate QueueSource = "alternate_exchange"
)

// QueueInfo — снимок состояния очереди брокера.
// Обновляется по запросу, никогда не персистится.
type QueueInfo struct {
	// Queue — имя очереди.
	Queue string `json:"queue"`

	// Messages — количество готовых сообщений.
	Messages int `json:"messages"`

	// Consumers — количество активных потребителей.
	Consumers int `json:"consumers"`

	// Source — происхождение очереди (direct / alternate_exchange).
	Source QueueSource `json:"source"`
}
