package product

import (
	"net/http"
	"strings"

	"api-harness/internal/auth"
	"api-harness/internal/envelope"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	envelope.Write(w, h.service.List(r.Context(), auth.BearerToken(r.Context())))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	envelope.Write(w, h.service.Detail(r.Context(), auth.BearerToken(r.Context()), id))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if !envelope.Decode(w, r, maxJSONBodyBytes, &input) {
		return
	}

	envelope.Write(w, h.service.Create(r.Context(), auth.BearerToken(r.Context()), input))
}
