// Package camunda реализует клиент external task API движка процессов.
//
// Протокол fetch-and-lock:
//
//	POST /external-task/fetchAndLock      — захват задач под lease (long-poll)
//	POST /external-task/{id}/complete     — успешное завершение
//	POST /external-task/{id}/failure      — retryable-ошибка (retries=0 → инцидент)
//	POST /external-task/{id}/bpmnError    — бизнес-исключение (error boundary)
//	POST /external-task/{id}/extendLock   — продление lease
//
// Состояния задачи со стороны клиента:
//
//	Available → Locked(leaseExpiry) → {Completed | Failed | LeaseExpired}
//
// Авторизация — basic или bearer, выбирается конфигурацией.
// TLS настраивается на уровне переданного http.Client, глобальных
// обходов проверки сертификатов нет.
package camunda
