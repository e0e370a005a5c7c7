package dispatcher

import "errors"

// Ошибки dispatch-цикла.
var (
	// ErrAlreadyReported — по задаче уже отправлен complete или fail.
	ErrAlreadyReported = errors.New("task already reported")

	// ErrTaskAbandoned — задача брошена после потери lease.
	ErrTaskAbandoned = errors.New("task abandoned")

	// ErrLeaseLost — lease истёк локально, отчёт бессмысленен.
	ErrLeaseLost = errors.New("task lease lost")

	// ErrRoutingUnresolved — таблица маршрутизации вернула пустой
	// маршрут. По построению невозможно; если случилось — нарушен
	// внутренний инвариант конфигурации.
	ErrRoutingUnresolved = errors.New("routing unresolved: invariant violation")
)
