// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, confirm-режим, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings по конфигурации маршрутизации
//   - publisher.go  — публикация с publisher confirms
//   - consumer.go   — потребление с prefetch и dead-letter при ошибках
//   - inspect.go    — интроспекция очередей (passive declare)
//
// Топология:
//
//	bpmbridge.tasks (topic, alternate-exchange → bpmbridge.unrouted)
//	├── bitrix24_tasks     [bitrix24.#]    DLQ: bitrix24_tasks.dlq
//	├── openproject_tasks  [openproject.#] DLQ: openproject_tasks.dlq
//	├── onec_tasks         [onec.#]        DLQ: onec_tasks.dlq
//	└── default_tasks      [default.#]     DLQ: default_tasks.dlq
//
//	bpmbridge.unrouted (fanout)
//	└── default.unrouted — сообщения без совпавшего binding
//
//	bpmbridge.dlx (direct)
//	└── {queue}.dlq — nack'нутые сообщения, ручной разбор
package mq
