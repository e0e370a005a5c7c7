// Package api содержит HTTP API для эксплуатации моста.
//
// Структура:
//   - handler.go         — Handler с DI (таблица маршрутизации, инспектор очередей, журнал)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - queue_handler.go   — обработчики для /queues
//   - routing_handler.go — обработчики для /routing
//   - system_handler.go  — обработчики для /systems
//   - journal_handler.go — обработчики для /journal
//
// API только читает: управление состоянием моста происходит через
// конфигурацию и рестарт, а не через HTTP.
package api
