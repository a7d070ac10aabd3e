package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestLogger(h.logger),
		Logging(h.logger),
	)

	// Memberships
	mux.Handle("POST /api/v1/memberships", chain(http.HandlerFunc(h.InitiateMembership)))
	mux.Handle("GET /api/v1/memberships/{requestId}", chain(http.HandlerFunc(h.GetMembershipStatus)))
	mux.Handle("POST /api/v1/memberships/{requestId}/verify", chain(http.HandlerFunc(h.VerifyMembership)))

	// Commands
	mux.Handle("GET /api/v1/commands", chain(http.HandlerFunc(h.ListCommands)))
	mux.Handle("POST /api/v1/commands/{service}/{command}", chain(http.HandlerFunc(h.ExecuteCommand)))

	// Instances
	mux.Handle("GET /api/v1/instances", chain(http.HandlerFunc(h.ListInstances)))
	mux.Handle("POST /api/v1/instances/{family}/cache/clear", chain(http.HandlerFunc(h.ClearInstanceCache)))
}
