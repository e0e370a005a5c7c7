package api

import (
	"sort"

	"github.com/amekhanov/bpmbridge/internal/config"
	"github.com/amekhanov/bpmbridge/internal/routing"
)

// Routing DTOs

// PrefixRuleResponse — префиксное правило маршрутизации.
// Порядок правил в ответе совпадает с порядком применения.
type PrefixRuleResponse struct {
	Prefix string `json:"prefix"`
	System string `json:"system"`
}

// RoutingTableResponse — полная таблица маршрутизации.
type RoutingTableResponse struct {
	DefaultSystem string               `json:"default_system"`
	ExactRules    map[string]string    `json:"exact_rules"`
	PrefixRules   []PrefixRuleResponse `json:"prefix_rules"`
	Queues        map[string]string    `json:"queues"`
	Routes        []RouteResponse      `json:"routes"`
}

// RoutingTableFromConfig конвертирует config.Routing в RoutingTableResponse.
func RoutingTableFromConfig(cfg config.Routing) RoutingTableResponse {
	rules := make([]PrefixRuleResponse, len(cfg.PrefixRules))
	for i, rule := range cfg.PrefixRules {
		rules[i] = PrefixRuleResponse{Prefix: rule.Prefix, System: rule.System}
	}

	return RoutingTableResponse{
		DefaultSystem: cfg.DefaultSystem,
		ExactRules:    cfg.ExactRules,
		PrefixRules:   rules,
		Queues:        cfg.Queues,
	}
}

// ResolveResponse — результат разрешения topic'а.
type ResolveResponse struct {
	Topic  string `json:"topic"`
	System string `json:"system"`
	Queue  string `json:"queue"`
	Key    string `json:"routing_key"`
}

// ResolveFromRoute конвертирует routing.Route в ResolveResponse.
func ResolveFromRoute(topic string, r routing.Route) ResolveResponse {
	return ResolveResponse{
		Topic:  topic,
		System: r.System,
		Queue:  r.Queue,
		Key:    r.Key,
	}
}

// RouteResponse — маршрут системы (system → queue).
type RouteResponse struct {
	System string `json:"system"`
	Queue  string `json:"queue"`
}

// RoutesFromTable конвертирует маршруты таблицы в стабильном порядке.
func RoutesFromTable(routes []routing.Route) []RouteResponse {
	result := make([]RouteResponse, len(routes))
	for i, route := range routes {
		result[i] = RouteResponse{System: route.System, Queue: route.Queue}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].System < result[j].System })
	return result
}
