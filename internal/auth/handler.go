package auth

import (
	"net/http"
	"strings"

	"api-harness/internal/envelope"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type logoutRequest struct {
	Username string `json:"username"`
}

// Login does not trim the password: comparison is exact.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !envelope.Decode(w, r, maxJSONBodyBytes, &body) {
		return
	}

	envelope.Write(w, h.service.Login(r.Context(), strings.TrimSpace(body.Username), body.Password))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if !envelope.Decode(w, r, maxJSONBodyBytes, &body) {
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" {
		envelope.Write(w, envelope.Fail(http.StatusBadRequest, "username is required"))
		return
	}

	envelope.Write(w, h.service.Logout(r.Context(), body.Username))
}
