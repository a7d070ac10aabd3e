package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Grantflow/internal/membership"
	"github.com/shaiso/Grantflow/internal/telemetry"
)

// InitiateMembership запускает заявку на добавление пользователя.
// POST /api/v1/memberships
func (h *Handler) InitiateMembership(w http.ResponseWriter, r *http.Request) {
	var req membership.AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	started, err := h.memberships.Initiate(r.Context(), &req)
	if HandleMembershipError(w, telemetry.FromContextOr(r.Context(), h.logger), err) {
		return
	}

	w.Header().Set("Location", "/api/v1/memberships/"+started.RequestID)
	Created(w, started)
}

// GetMembershipStatus согласует статус заявки.
// GET /api/v1/memberships/{requestId}
func (h *Handler) GetMembershipStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestId")
	if requestID == "" {
		BadRequest(w, "request id is required")
		return
	}

	view, err := h.memberships.Status(r.Context(), requestID)
	if HandleMembershipError(w, telemetry.FromContextOr(r.Context(), h.logger), err) {
		return
	}

	Success(w, view)
}

// VerifyMembership проверяет, что request id выпущен для project и user.
// POST /api/v1/memberships/{requestId}/verify
func (h *Handler) VerifyMembership(w http.ResponseWriter, r *http.Request) {
	var req VerifyMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	valid := h.memberships.ValidateRequestToken(r.PathValue("requestId"), req.Project, req.User)
	Success(w, VerifyMembershipResponse{Valid: valid})
}
