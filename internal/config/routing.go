package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// PrefixRule — правило маршрутизации по префиксу topic'а.
//
// Правила проверяются в порядке объявления: выигрывает первое
// совпавшее, а не самое длинное. Два пересекающихся префикса дают
// разные системы в зависимости от порядка — это зафиксированное
// поведение, менять порядок правил нельзя без миграции процессов.
type PrefixRule struct {
	// Prefix — начало имени topic'а.
	Prefix string `json:"prefix"`

	// System — целевая система.
	System string `json:"system"`
}

// Routing — статическая конфигурация маршрутизации.
//
// Загружается один раз при старте и передаётся компонентам как
// неизменяемое значение. Порядок PrefixRules значим (см. PrefixRule).
type Routing struct {
	// DefaultSystem — система для topic'ов, не подошедших ни под одно правило.
	DefaultSystem string `json:"default_system"`

	// ExactRules — точное соответствие topic → система.
	// Проверяется раньше префиксных правил.
	ExactRules map[string]string `json:"exact_rules"`

	// PrefixRules — упорядоченные префиксные правила.
	PrefixRules []PrefixRule `json:"prefix_rules"`

	// Queues — очередь брокера для каждой системы.
	Queues map[string]string `json:"queues"`

	// Descriptions — описания систем для статусов и интроспекции.
	Descriptions map[string]string `json:"descriptions,omitempty"`
}

// DefaultRouting возвращает конфигурацию маршрутизации по умолчанию:
// Bitrix24, OpenProject и 1С плюс очередь default для всего остального.
func DefaultRouting() Routing {
	return Routing{
		DefaultSystem: "default",
		ExactRules: map[string]string{
			"send_notification": "bitrix24",
			"sync_employees":    "onec",
		},
		PrefixRules: []PrefixRule{
			{Prefix: "bitrix24", System: "bitrix24"},
			{Prefix: "b24", System: "bitrix24"},
			{Prefix: "op", System: "openproject"},
			{Prefix: "onec", System: "onec"},
			{Prefix: "1c", System: "onec"},
		},
		Queues: map[string]string{
			"bitrix24":    "bitrix24_tasks",
			"openproject": "openproject_tasks",
			"onec":        "onec_tasks",
			"default":     "default_tasks",
		},
		Descriptions: map[string]string{
			"bitrix24":    "Bitrix24 CRM",
			"openproject": "OpenProject",
			"onec":        "1C:Enterprise",
			"default":     "Unclassified topics",
		},
	}
}

// LoadRouting загружает конфигурацию маршрутизации.
//
// Если переменная ROUTING_CONFIG указывает на JSON-файл, конфигурация
// читается из него, иначе используется DefaultRouting.
func LoadRouting() (Routing, error) {
	path := os.Getenv("ROUTING_CONFIG")
	if path == "" {
		return DefaultRouting(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Routing{}, fmt.Errorf("read routing config %s: %w", path, err)
	}

	var r Routing
	if err := json.Unmarshal(data, &r); err != nil {
		return Routing{}, fmt.Errorf("parse routing config %s: %w", path, err)
	}

	if err := r.Validate(); err != nil {
		return Routing{}, fmt.Errorf("routing config %s: %w", path, err)
	}

	return r, nil
}

// Validate проверяет целостность конфигурации маршрутизации.
func (r Routing) Validate() error {
	if r.DefaultSystem == "" {
		return fmt.Errorf("default_system is required")
	}

	if _, ok := r.Queues[r.DefaultSystem]; !ok {
		return fmt.Errorf("no queue configured for default system %q", r.DefaultSystem)
	}

	for topic, system := range r.ExactRules {
		if _, ok := r.Queues[system]; !ok {
			return fmt.Errorf("exact rule %q targets system %q without a queue", topic, system)
		}
	}

	for _, rule := range r.PrefixRules {
		if rule.Prefix == "" {
			return fmt.Errorf("prefix rule with empty prefix")
		}
		if _, ok := r.Queues[rule.System]; !ok {
			return fmt.Errorf("prefix rule %q targets system %q without a queue", rule.Prefix, rule.System)
		}
	}

	return nil
}

// Systems возвращает имена всех систем с настроенной очередью.
func (r Routing) Systems() []string {
	systems := make([]string, 0, len(r.Queues))
	for system := range r.Queues {
		systems = append(systems, system)
	}
	return systems
}
