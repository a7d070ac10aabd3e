package api

import (
	"net/http"

	"github.com/shaiso/Grantflow/internal/telemetry"
)

// ListInstances возвращает сконфигурированные инстансы по семействам.
// GET /api/v1/instances
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	result := make([]FamilyResponse, 0, len(h.order))
	for _, name := range h.order {
		f := h.families[name]
		resp := FamilyResponse{
			Family:    name,
			Instances: f.AvailableInstances(),
		}
		if def, err := f.ResolveInstanceName(""); err == nil {
			resp.DefaultInstance = def
		}
		if resp.Instances == nil {
			resp.Instances = []string{}
		}
		result = append(result, resp)
	}

	List(w, result, len(result))
}

// ClearInstanceCache выбрасывает закешированные клиенты семейства.
// POST /api/v1/instances/{family}/cache/clear
func (h *Handler) ClearInstanceCache(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("family")
	f, ok := h.families[name]
	if !ok {
		NotFound(w, "unknown backend family "+name)
		return
	}

	f.ClearCache()
	telemetry.FromContextOr(r.Context(), h.logger).Info("client cache cleared via api", "family", name)
	w.WriteHeader(http.StatusNoContent)
}
