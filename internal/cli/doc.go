// Package cli реализует инструмент командной строки bpmbridge.
//
// # Обзор
//
// CLI — клиентская утилита для наблюдения за мостом через HTTP API.
// Работает по HTTP, не импортирует внутренние пакеты моста.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для bpmbridge API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	queues, err := client.ListQueues()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json encoder с отступами) — с флагом --json
//
// Данные выводятся в stdout, сообщения — в stderr.
// Это позволяет использовать pipe: bpmbridge queue list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - queue: list, unrouted
//   - routing: show, resolve
//   - system: list
//   - journal: recent
//
// Каждая группа создаётся через фабричную функцию (NewQueueCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
