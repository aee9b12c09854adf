package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/destination"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

// destinationHandler serves org-scoped destination CRUD.
type destinationHandler struct {
	store  *destination.Store
	logger log.Logger
}

func (h *destinationHandler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var in destination.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	dest, err := h.store.Create(r.Context(), identity.OrgID, identity.UserID, in)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dest)
}

func (h *destinationHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	dests, err := h.store.List(r.Context(), identity.OrgID, q.Get("search"), limit, offset)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"destinations": dests})
}

func (h *destinationHandler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	dest, err := h.store.Get(r.Context(), identity.OrgID, id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dest)
}

func (h *destinationHandler) update(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var in destination.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	dest, err := h.store.Update(r.Context(), identity.OrgID, id, in)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dest)
}

func (h *destinationHandler) delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), identity.OrgID, id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *destinationHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, destination.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "destination not found")
	case errors.Is(err, destination.ErrDuplicateName):
		writeError(w, http.StatusConflict, "duplicate_name", "a destination with this name already exists")
	case errors.Is(err, destination.ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.logger.Error("destination request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
