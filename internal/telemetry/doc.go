// Package telemetry обеспечивает наблюдаемость моста.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Оба бинарника используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
