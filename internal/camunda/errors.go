package camunda

import "errors"

// Ошибки клиента движка.
var (
	// ErrEngineUnavailable — движок недоступен (сеть или 5xx).
	// Транзиентная ошибка: fetch повторяется с backoff, захваченные
	// задачи не бросаются.
	ErrEngineUnavailable = errors.New("workflow engine unavailable")

	// ErrTaskNotFound — задача не существует в движке
	// (уже завершена другим воркером или lease истёк и задача ушла).
	ErrTaskNotFound = errors.New("external task not found")

	// ErrLockExpired — lease истёк, задача переназначена.
	// Фатально только для операции над этой задачей: бросить, не повторять.
	ErrLockExpired = errors.New("task lock expired")
)
