package api

import (
	"net/http"
	"sort"

	"github.com/amekhanov/bpmbridge/internal/domain"
)

// ListSystems возвращает статусы целевых систем по данным health monitor'а.
// GET /api/v1/systems
func (h *Handler) ListSystems(w http.ResponseWriter, r *http.Request) {
	statuses := h.statuses.Statuses()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].System < statuses[j].System
	})

	if statuses == nil {
		statuses = []domain.SystemStatus{}
	}

	List(w, statuses, len(statuses))
}
