package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20 // 1MB

// authHandler serves login, token refresh, and user management.
type authHandler struct {
	service *auth.Service
	logger  log.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *authHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *authHandler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	user, err := h.service.Me(r.Context(), identity.UserID)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *authHandler) createUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := auth.Role(req.Role)
	if req.Role == "" {
		role = auth.RoleMember
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "role must be admin or member")
		return
	}

	user, err := h.service.CreateUser(r.Context(), caller, req.Email, req.Password, role)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *authHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	users, err := h.service.ListUsers(r.Context(), caller)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *authHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), caller, userID); err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// writeAuthError maps auth service errors onto HTTP statuses.
func (h *authHandler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "incorrect email or password")
	case errors.Is(err, auth.ErrAccountLocked):
		writeError(w, http.StatusTooManyRequests, "account_locked", "account temporarily locked, try again later")
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or revoked token")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "admin role required")
	case errors.Is(err, auth.ErrSelfDelete):
		writeError(w, http.StatusBadRequest, "self_delete", "cannot delete own account")
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusConflict, "user_exists", "email already registered")
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	default:
		h.logger.Error("auth request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// callerUser builds the acting user from the verified token claims.
// Role checks in the service layer work off this without a DB round trip.
func callerUser(r *http.Request) (*auth.User, bool) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return &auth.User{ID: identity.UserID, OrgID: identity.OrgID, Role: identity.Role}, true
}

// decodeJSON parses a size-capped JSON body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

// pathUUID parses a UUID path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
