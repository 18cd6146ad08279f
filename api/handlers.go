package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maxpert/mxbridge/bridge"
	"github.com/maxpert/mxbridge/journal"
)

// History is the read side of the evaluation journal.
type History interface {
	Recent(ctx context.Context, q journal.Query) ([]journal.Entry, error)
}

// Handlers serves the host API over a SessionManager.
type Handlers struct {
	sessions     *SessionManager
	filter       *VariableFilter
	history      History
	startCommand string
	historyLimit int
}

// NewHandlers creates API handlers. history may be nil when the journal is
// disabled; startCommand is used when a request does not name one.
func NewHandlers(sessions *SessionManager, filter *VariableFilter, history History, startCommand string, historyLimit int) *Handlers {
	if historyLimit < 1 {
		historyLimit = 100
	}
	return &Handlers{
		sessions:     sessions,
		filter:       filter,
		history:      history,
		startCommand: startCommand,
		historyLimit: historyLimit,
	}
}

type openRequest struct {
	StartCommand *string `json:"start_command,omitempty" msgpack:"start_command,omitempty"`
}

type evalRequest struct {
	Command string `json:"command" msgpack:"command"`
	Result  string `json:"result,omitempty" msgpack:"result,omitempty"`
}

type evalResponse struct {
	Value  *bridge.Value `json:"value,omitempty" msgpack:"value,omitempty"`
	Output string        `json:"output" msgpack:"output"`
}

type putRequest struct {
	Matrix [][]float64 `json:"matrix,omitempty" msgpack:"matrix,omitempty"`
	Value  interface{} `json:"value,omitempty" msgpack:"value,omitempty"`
}

type sessionInfo struct {
	ID        string         `json:"id" msgpack:"id"`
	State     string         `json:"state" msgpack:"state"`
	Variables []bridge.Entry `json:"variables" msgpack:"variables"`
}

func (h *Handlers) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	startCommand := h.startCommand
	if req.StartCommand != nil {
		startCommand = *req.StartCommand
	}

	s, err := h.sessions.Open(r.Context(), startCommand)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusCreated, sessionInfo{ID: s.ID(), State: s.State().String(), Variables: []bridge.Entry{}})
}

func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request, s *bridge.Session) {
	writeResponse(w, r, http.StatusOK, sessionInfo{
		ID:        s.ID(),
		State:     s.State().String(),
		Variables: s.Registry().Entries(),
	})
}

func (h *Handlers) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Close(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, map[string]interface{}{"id": id, "state": bridge.StateClosed.String()})
}

func (h *Handlers) handleEval(w http.ResponseWriter, r *http.Request, s *bridge.Session) {
	var req evalRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.Result == "" {
		if err := s.Eval(r.Context(), req.Command); err != nil {
			h.writeEvalError(w, r, s, err)
			return
		}
		writeResponse(w, r, http.StatusOK, evalResponse{Output: s.Output()})
		return
	}

	if !h.filter.Allowed(req.Result) {
		writeErrorResponse(w, r, http.StatusForbidden, fmt.Sprintf("variable %q is not accessible", req.Result))
		return
	}
	v, err := s.Evaluate(r.Context(), req.Command, req.Result)
	if err != nil {
		h.writeEvalError(w, r, s, err)
		return
	}
	writeResponse(w, r, http.StatusOK, evalResponse{Value: &v, Output: s.Output()})
}

// writeEvalError includes the console text, which carries the engine's own
// error message.
func (h *Handlers) writeEvalError(w http.ResponseWriter, r *http.Request, s *bridge.Session, err error) {
	write(w, r, errorStatus(err), map[string]interface{}{
		"error":  err.Error(),
		"output": s.Output(),
	})
}

func (h *Handlers) handleGetVariable(w http.ResponseWriter, r *http.Request, s *bridge.Session) {
	name, ok := h.variableName(w, r)
	if !ok {
		return
	}
	v, err := s.GetVariable(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, v)
}

func (h *Handlers) handlePutVariable(w http.ResponseWriter, r *http.Request, s *bridge.Session) {
	name, ok := h.variableName(w, r)
	if !ok {
		return
	}
	var req putRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	matrix := req.Matrix
	if matrix == nil {
		if req.Value == nil {
			writeErrorResponse(w, r, http.StatusBadRequest, "body must carry matrix or value")
			return
		}
		var err error
		if matrix, err = bridge.ToMatrix(req.Value); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := s.PutVariable(r.Context(), name, matrix); err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, map[string]interface{}{
		"name":       name,
		"registered": s.Registry().Len(),
	})
}

func (h *Handlers) handleRemoveVariables(w http.ResponseWriter, r *http.Request, s *bridge.Session) {
	n, err := s.RemoveVariables(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, map[string]interface{}{"released": n})
}

func (h *Handlers) handleOutput(w http.ResponseWriter, r *http.Request, s *bridge.Session) {
	writeResponse(w, r, http.StatusOK, map[string]interface{}{"output": s.Output()})
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request, s *bridge.Session) {
	if h.history == nil {
		writeErrorResponse(w, r, http.StatusNotFound, "journal is disabled")
		return
	}
	limit, err := parseLimit(r, h.historyLimit)
	if err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.history.Recent(r.Context(), journal.Query{
		SessionID: s.ID(),
		Match:     r.URL.Query().Get("match"),
		Limit:     limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeResponse(w, r, http.StatusOK, entries)
}

func (h *Handlers) variableName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeErrorResponse(w, r, http.StatusBadRequest, "variable name is required")
		return "", false
	}
	if !h.filter.Allowed(name) {
		writeErrorResponse(w, r, http.StatusForbidden, fmt.Sprintf("variable %q is not accessible", name))
		return "", false
	}
	return name, true
}

// parseLimit parses the limit parameter, capped at 1024.
func parseLimit(r *http.Request, def int) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %w", err)
	}
	if limit < 1 {
		return 0, fmt.Errorf("limit must be positive")
	}
	if limit > 1024 {
		return 0, fmt.Errorf("limit cannot exceed 1024")
	}
	return limit, nil
}
