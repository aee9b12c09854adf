package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

// maxUploadSize caps multipart document uploads.
const maxUploadSize = 20 << 20 // 20MB

// knowledgeHandler serves document ingestion and retrieval search.
type knowledgeHandler struct {
	store    *knowledge.Store
	ingestor *knowledge.Ingestor
	embedder *knowledge.Embedder
	logger   log.Logger
}

// parseScope reads the optional scope field, defaulting to private.
func parseScope(raw string) (knowledge.Scope, bool) {
	if raw == "" {
		return knowledge.ScopePrivate, true
	}
	scope := knowledge.Scope(raw)
	return scope, scope.Valid()
}

func (h *knowledgeHandler) upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "could not read uploaded file")
		return
	}

	scope, ok := parseScope(r.FormValue("scope"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "scope must be org_public or private")
		return
	}

	item, err := h.ingestor.IngestFile(r.Context(), identity.OrgID, identity.UserID,
		header.Filename, data, r.FormValue("title"), scope)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type ingestURLRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Scope string `json:"scope"`
}

func (h *knowledgeHandler) ingestURL(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req ingestURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}
	scope, ok := parseScope(req.Scope)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "scope must be org_public or private")
		return
	}

	item, err := h.ingestor.IngestURL(r.Context(), identity.OrgID, identity.UserID, req.URL, req.Title, scope)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type ingestTextRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Scope string `json:"scope"`
}

func (h *knowledgeHandler) ingestText(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req ingestTextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "title and text are required")
		return
	}
	scope, ok := parseScope(req.Scope)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "scope must be org_public or private")
		return
	}

	item, err := h.ingestor.IngestText(r.Context(), identity.OrgID, identity.UserID, req.Title, req.Text, scope)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *knowledgeHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, err := h.store.ListItems(r.Context(), identity.OrgID, identity.UserID, limit, offset)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	// Listings stay lightweight; the full source text is on the item GET.
	for _, it := range items {
		it.Content = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *knowledgeHandler) listChunks(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	// Same visibility rules as fetching the item itself.
	item, err := h.store.GetItem(r.Context(), identity.OrgID, identity.UserID, id)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}

	chunks, err := h.store.ListChunks(r.Context(), item.ID)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": item.ID, "chunks": chunks})
}

func (h *knowledgeHandler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	item, err := h.store.GetItem(r.Context(), identity.OrgID, identity.UserID, id)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *knowledgeHandler) delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	// Owners delete their own items; admins delete any item in the org.
	item, err := h.store.GetItem(r.Context(), identity.OrgID, identity.UserID, id)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	if item.OwnerID != identity.UserID && !identity.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden", "only the owner or an admin can delete this item")
		return
	}

	if err := h.store.DeleteItem(r.Context(), id); err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *knowledgeHandler) reprocess(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	item, err := h.store.GetItem(r.Context(), identity.OrgID, identity.UserID, id)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}

	item, err = h.ingestor.Reprocess(r.Context(), item)
	if err != nil {
		h.writeKnowledgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (h *knowledgeHandler) search(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	if topK > 50 {
		topK = 50
	}

	results, mode := h.runSearch(r, identity, req.Query, topK)
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"mode":    mode,
		"results": results,
	})
}

// runSearch embeds the query for vector search, falling back to keyword
// search when the embedder is unavailable or fails.
func (h *knowledgeHandler) runSearch(r *http.Request, identity Identity, query string, topK int) ([]knowledge.SearchResult, string) {
	ctx := r.Context()

	if h.embedder != nil {
		vec, err := h.embedder.EmbedOne(ctx, query)
		if err == nil {
			results, err := h.store.Search(ctx, identity.OrgID, identity.UserID, vec, topK)
			if err == nil {
				return results, "vector"
			}
			h.logger.Warn("vector search failed, falling back to keyword search", "error", err)
		} else {
			h.logger.Warn("query embedding failed, falling back to keyword search", "error", err)
		}
	}

	results, err := h.store.KeywordSearch(ctx, identity.OrgID, identity.UserID, query, topK)
	if err != nil {
		h.logger.Error("keyword search failed", "error", err)
		return nil, "keyword"
	}
	return results, "keyword"
}

func (h *knowledgeHandler) writeKnowledgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "knowledge item not found")
	case errors.Is(err, knowledge.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "unsupported_format", "only .txt, .md, and .pdf files are supported")
	case errors.Is(err, knowledge.ErrEmptyDocument):
		writeError(w, http.StatusBadRequest, "empty_document", "document contains no extractable text")
	default:
		h.logger.Error("knowledge request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
