package api

import (
	"net/http"
)

// RoutingTable возвращает действующую таблицу маршрутизации.
// GET /api/v1/routing
func (h *Handler) RoutingTable(w http.ResponseWriter, r *http.Request) {
	resp := RoutingTableFromConfig(h.routingCfg)
	resp.Routes = RoutesFromTable(h.table.Routes())

	Success(w, resp)
}

// ResolveTopic показывает, куда таблица направит заданный topic.
// GET /api/v1/routing/resolve?topic=op_create_task
func (h *Handler) ResolveTopic(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		BadRequest(w, "topic query parameter is required")
		return
	}

	route := h.table.Resolve(topic)
	Success(w, ResolveFromRoute(topic, route))
}
