package api

import (
	"net/http"
	"strconv"
)

// RecentJournal возвращает последние записи журнала диспетчеризации.
// GET /api/v1/journal?limit=100
func (h *Handler) RecentJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		NotFound(w, "journal is not configured")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	List(w, entries, len(entries))
}
