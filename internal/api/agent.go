package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/agent"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

// maxAgentMessage caps the user message length for an agent run.
const maxAgentMessage = 8000

// agentHandler starts agent runs and serves their status and event stream.
type agentHandler struct {
	runner *agent.Runner
	logger log.Logger
}

type runRequest struct {
	Message string `json:"message"`
}

func (h *agentHandler) startRun(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req runRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if len(req.Message) > maxAgentMessage {
		writeError(w, http.StatusBadRequest, "invalid_request", "message too long")
		return
	}

	run, err := h.runner.Start(r.Context(), identity.OrgID, identity.UserID, req.Message)
	if err != nil {
		h.logger.Error("starting agent run", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not start run")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":     run.ID,
		"status":     run.Status,
		"refinement": agent.IsRefinementRequest(req.Message),
	})
}

func (h *agentHandler) runStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	run, err := h.runner.Get(r.Context(), identity.OrgID, id)
	if err != nil {
		if errors.Is(err, agent.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		h.logger.Error("fetching agent run", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// stream serves the run's live events over SSE. Finished runs get a single
// replayed terminal event assembled from the persisted record.
func (h *agentHandler) stream(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	// Ownership check before any SSE headers go out.
	run, err := h.runner.Get(r.Context(), identity.OrgID, id)
	if err != nil {
		if errors.Is(err, agent.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		h.logger.Error("fetching agent run", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cancel, live := h.runner.Subscribe(id)
	if !live {
		// The run already finished; replay its terminal state.
		h.replayFinishedRun(w, flusher, run)
		return
	}
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeEvent(w, flusher, string(ev.Type), ev); err != nil {
				return
			}
		}
	}
}

// replayFinishedRun emits one terminal event for a run that completed
// before the client subscribed.
func (h *agentHandler) replayFinishedRun(w io.Writer, flusher http.Flusher, run *agent.Run) {
	switch run.Status {
	case agent.RunCompleted:
		_ = writeEvent(w, flusher, string(agent.EventDone), agent.Event{
			Type:    agent.EventDone,
			Percent: 100,
			Results: run.Results,
		})
	case agent.RunFailed:
		_ = writeEvent(w, flusher, string(agent.EventError), agent.Event{
			Type:     agent.EventError,
			ErrorMsg: run.Error,
		})
	default:
		_ = writeEvent(w, flusher, string(agent.EventProgress), agent.Event{
			Type:    agent.EventProgress,
			Node:    run.CurrentStep,
			Percent: int(run.Progress),
		})
	}
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
