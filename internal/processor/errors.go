package processor

import "errors"

// Ошибки consumer-стороны.
var (
	// ErrNoHandler — для очереди не зарегистрирован обработчик.
	ErrNoHandler = errors.New("no handler registered for queue")

	// ErrDuplicateHandler — обработчик очереди регистрируется повторно.
	ErrDuplicateHandler = errors.New("duplicate handler registration")
)
