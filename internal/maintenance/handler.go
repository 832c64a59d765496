package maintenance

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"api-harness/internal/auth"
	"api-harness/internal/envelope"
	"api-harness/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

// Resetter restores a store to its seed state.
type Resetter interface {
	Reset(ctx context.Context) error
}

// MockAdminHandler exposes store maintenance for scenario runs against a
// live server. Every route answers 404 while the secret is unset.
type MockAdminHandler struct {
	users     auth.UserStore
	resetters []Resetter
	logger    *observability.Logger
	secret    string
}

func NewMockAdminHandler(users auth.UserStore, logger *observability.Logger, secret string, resetters ...Resetter) *MockAdminHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &MockAdminHandler{
		users:     users,
		resetters: resetters,
		logger:    logger,
		secret:    strings.TrimSpace(secret),
	}
}

type addUserRequest struct {
	Username string          `json:"username"`
	Fields   auth.UserFields `json:"fields"`
}

func (h *MockAdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	for _, resetter := range h.resetters {
		if err := resetter.Reset(r.Context()); err != nil {
			h.logger.Error("mock_reset_failed", map[string]any{"error": err.Error()})
			envelope.Write(w, envelope.Internal())
			return
		}
	}

	h.logger.Info("mock_reset_completed", map[string]any{"stores": len(h.resetters)})
	envelope.Write(w, envelope.OK(nil))
}

func (h *MockAdminHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var body addUserRequest
	if !envelope.Decode(w, r, maxJSONBodyBytes, &body) {
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" {
		envelope.Write(w, envelope.Fail(http.StatusBadRequest, "username is required"))
		return
	}

	err := h.users.Add(r.Context(), body.Username, body.Fields)
	switch {
	case err == nil:
		envelope.Write(w, envelope.Created(nil))
	case errors.Is(err, auth.ErrUserExists):
		envelope.Write(w, envelope.Fail(http.StatusConflict, "user already exists"))
	case errors.Is(err, auth.ErrInvalidUser):
		envelope.Write(w, envelope.Fail(http.StatusBadRequest, "invalid user fields"))
	default:
		h.logger.Error("mock_add_user_failed", map[string]any{"username": body.Username, "error": err.Error()})
		envelope.Write(w, envelope.Internal())
	}
}

func (h *MockAdminHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	err := h.users.Remove(r.Context(), username)
	switch {
	case err == nil:
		envelope.Write(w, envelope.OK(nil))
	case errors.Is(err, auth.ErrUserNotFound):
		envelope.Write(w, envelope.Fail(http.StatusNotFound, "user not found"))
	case errors.Is(err, auth.ErrProtectedUser):
		envelope.Write(w, envelope.Fail(http.StatusForbidden, "seed user cannot be removed"))
	default:
		h.logger.Error("mock_remove_user_failed", map[string]any{"username": username, "error": err.Error()})
		envelope.Write(w, envelope.Internal())
	}
}

func (h *MockAdminHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.secret == "" {
		envelope.Write(w, envelope.Fail(http.StatusNotFound, "not found"))
		return false
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.secret {
		envelope.Write(w, envelope.Fail(http.StatusUnauthorized, "unauthorized"))
		return false
	}
	return true
}
