// Package routing реализует таблицу маршрутизации topic → система → очередь.
//
// Таблица неизменяема после построения и никогда не отвечает отказом:
// topic без правила уходит в систему по умолчанию. Префиксные правила
// проверяются в порядке объявления — выигрывает первое совпавшее,
// а не самое длинное.
package routing

import (
	"strings"

	"github.com/amekhanov/bpmbridge/internal/config"
)

// Route — результат разрешения topic'а.
type Route struct {
	// System — целевая система.
	System string

	// Queue — очередь системы в брокере.
	Queue string

	// Key — ключ маршрутизации вида "{system}.{topic}".
	Key string
}

// Table — неизменяемая таблица маршрутизации.
type Table struct {
	defaultSystem string
	exact         map[string]string
	prefixes      []config.PrefixRule
	queues        map[string]string
}

// NewTable строит таблицу из конфигурации.
// Конфигурация копируется: последующие мутации исходных map
// на таблицу не влияют.
func NewTable(cfg config.Routing) *Table {
	exact := make(map[string]string, len(cfg.ExactRules))
	for topic, system := range cfg.ExactRules {
		exact[topic] = system
	}

	queues := make(map[string]string, len(cfg.Queues))
	for system, queue := range cfg.Queues {
		queues[system] = queue
	}

	prefixes := make([]config.PrefixRule, len(cfg.PrefixRules))
	copy(prefixes, cfg.PrefixRules)

	return &Table{
		defaultSystem: cfg.DefaultSystem,
		exact:         exact,
		prefixes:      prefixes,
		queues:        queues,
	}
}

// Resolve разрешает topic в маршрут.
//
// Порядок: точное правило → префиксные правила в порядке объявления →
// система по умолчанию. Не бывает неразрешённых topic'ов.
func (t *Table) Resolve(topic string) Route {
	system := t.systemFor(topic)

	return Route{
		System: system,
		Queue:  t.QueueFor(system),
		Key:    RoutingKey(system, topic),
	}
}

// systemFor определяет целевую систему для topic'а.
func (t *Table) systemFor(topic string) string {
	if system, ok := t.exact[topic]; ok {
		return system
	}

	// Первое совпавшее правило, не самое длинное: порядок объявления
	// — часть контракта таблицы.
	for _, rule := range t.prefixes {
		if strings.HasPrefix(topic, rule.Prefix) {
			return rule.System
		}
	}

	return t.defaultSystem
}

// QueueFor возвращает очередь системы.
// Для неизвестной системы возвращается очередь системы по умолчанию.
func (t *Table) QueueFor(system string) string {
	if queue, ok := t.queues[system]; ok {
		return queue
	}
	return t.queues[t.defaultSystem]
}

// DefaultSystem возвращает систему по умолчанию.
func (t *Table) DefaultSystem() string {
	return t.defaultSystem
}

// Routes возвращает маршруты всех настроенных систем
// (для интроспекции и объявления топологии).
func (t *Table) Routes() []Route {
	routes := make([]Route, 0, len(t.queues))
	for system, queue := range t.queues {
		routes = append(routes, Route{System: system, Queue: queue})
	}
	return routes
}

// RoutingKey строит ключ маршрутизации для публикации.
func RoutingKey(system, topic string) string {
	return system + "." + topic
}
