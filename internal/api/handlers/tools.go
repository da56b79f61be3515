// Package handlers contains the HTTP handlers for the voice platform API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/romidental/voice-platform/internal/tools"
	"github.com/romidental/voice-platform/pkg/logging"
)

// maxToolBody bounds tool argument payloads. Tool args are a handful of
// short fields; anything larger is malformed.
const maxToolBody = 64 << 10

// ToolsHandler exposes the tool registry over HTTP for the voice pipeline.
type ToolsHandler struct {
	dispatcher *tools.Dispatcher
	logger     *logging.Logger
}

// NewToolsHandler creates the tool invocation handler.
func NewToolsHandler(dispatcher *tools.Dispatcher, logger *logging.Logger) *ToolsHandler {
	if dispatcher == nil {
		panic("handlers: dispatcher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ToolsHandler{dispatcher: dispatcher, logger: logger}
}

// InvokeResponse is the body of a successful tool call.
type InvokeResponse struct {
	Response string `json:"response"`
}

// Invoke handles POST /tools/{name}. The body is the tool's JSON arguments;
// the response is always a speakable string.
func (h *ToolsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxToolBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), name, body)
	if errors.Is(err, tools.ErrUnknownTool) {
		writeError(w, http.StatusNotFound, "unknown tool")
		return
	}
	if err != nil {
		h.logger.Error("tool dispatch failed", "tool", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, InvokeResponse{Response: resp})
}

// List handles GET /tools.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tools": h.dispatcher.Names()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
