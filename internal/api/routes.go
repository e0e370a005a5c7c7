package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Queues
	mux.Handle("GET /api/v1/queues", chain(http.HandlerFunc(h.ListQueues)))
	mux.Handle("GET /api/v1/queues/unrouted", chain(http.HandlerFunc(h.UnroutedQueue)))

	// Routing
	mux.Handle("GET /api/v1/routing", chain(http.HandlerFunc(h.RoutingTable)))
	mux.Handle("GET /api/v1/routing/resolve", chain(http.HandlerFunc(h.ResolveTopic)))

	// Systems
	mux.Handle("GET /api/v1/systems", chain(http.HandlerFunc(h.ListSystems)))

	// Journal
	mux.Handle("GET /api/v1/journal", chain(http.HandlerFunc(h.RecentJournal)))
}
