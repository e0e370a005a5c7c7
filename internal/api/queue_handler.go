package api

import (
	"errors"
	"net/http"

	"github.com/amekhanov/bpmbridge/internal/mq"
)

// ListQueues возвращает снимки всех очередей моста, включая DLQ
// и очередь alternate exchange.
// GET /api/v1/queues
func (h *Handler) ListQueues(w http.ResponseWriter, r *http.Request) {
	infos, err := h.queues.ListQueues(r.Context())
	if err != nil {
		if errors.Is(err, mq.ErrBrokerUnavailable) {
			Unavailable(w, "broker unavailable")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	List(w, infos, len(infos))
}

// UnroutedQueue возвращает снимок очереди alternate exchange.
// Ненулевой счётчик сообщений — сигнал о пробеле в таблице маршрутизации.
// GET /api/v1/queues/unrouted
func (h *Handler) UnroutedQueue(w http.ResponseWriter, r *http.Request) {
	info, err := h.queues.AlternateExchangeInfo(r.Context())
	if err != nil {
		if errors.Is(err, mq.ErrBrokerUnavailable) {
			Unavailable(w, "broker unavailable")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, info)
}
