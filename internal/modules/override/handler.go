package override

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/identity"
)

// Handler exposes the override authorization endpoint.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/override/authorize", h.authorize)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	var req AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	decision, err := h.service.Authorize(r.Context(), ident.TenantID, ident.OperatorID, req)
	if err != nil {
		code := http.StatusInternalServerError
		var validation *ErrValidation
		if errors.As(err, &validation) {
			code = http.StatusBadRequest
		}
		respond(w, code, map[string]string{"error": err.Error()})
		return
	}
	// Denials are 200s with granted=false; they are outcomes, not errors.
	respond(w, http.StatusOK, decision)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
