// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/engine"
	"github.com/jeranaias/inkwell/internal/marker"
	"github.com/jeranaias/inkwell/internal/ollama"
	"github.com/jeranaias/inkwell/internal/prompt"
	"github.com/jeranaias/inkwell/internal/storage"
)

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Ollama  string `json:"ollama"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{Status: "ok", Version: s.version}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.client(s.store.Snapshot()).CheckRunning(ctx); err == nil {
		health.Ollama = "ok"
	} else {
		health.Ollama = "unavailable"
	}
	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// COMMANDS AND MODELS
// ============================================================================

// CommandView is a stored command together with its id.
type CommandView struct {
	ID string `json:"id"`
	prompt.Command
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	cmds := s.store.Snapshot().Commands
	out := make([]CommandView, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, CommandView{ID: c.ID(), Command: c})
	}
	writeJSON(w, http.StatusOK, out)
}

// ModelsResponse is the body of GET /api/models.
type ModelsResponse struct {
	Default string   `json:"default"`
	Models  []string `json:"models"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Snapshot()
	names, err := s.client(cfg).ModelNames(r.Context())
	if err != nil {
		s.logger.Warn("model listing failed", "server_url", cfg.ServerURL, "error", err)
		writeError(w, http.StatusBadGateway, err.Error(), "configuration")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Default: cfg.DefaultModel, Models: names})
}

// ============================================================================
// COMPOSE AND INVOKE
// ============================================================================

// Selection is a document range.
type Selection struct {
	From marker.Position `json:"from"`
	To   marker.Position `json:"to"`
}

// CommandRequest names either a stored command or an ad-hoc prompt, with
// optional overrides.
type CommandRequest struct {
	Command     string   `json:"command,omitempty"`
	Prompt      string   `json:"prompt,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// ComposeRequest is the body of POST /api/compose.
type ComposeRequest struct {
	CommandRequest
	Text string `json:"text"`
}

// ComposeResponse is the body returned by POST /api/compose.
type ComposeResponse struct {
	prompt.ComposedRequest
	Warnings []string `json:"warnings"`
}

// InvokeRequest is the body of POST /api/invoke.
type InvokeRequest struct {
	CommandRequest
	Document  string           `json:"document"`
	Selection *Selection       `json:"selection,omitempty"`
	Cursor    *marker.Position `json:"cursor,omitempty"`
}

// InvokeResponse is returned by POST /api/invoke for both outcomes. On
// failure Text is empty and Document is the original document.
type InvokeResponse struct {
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text,omitempty"`
	Document string   `json:"document"`
	Warnings []string `json:"warnings"`
	Error    string   `json:"error,omitempty"`
	Code     string   `json:"code,omitempty"`
}

var errNoCommand = errors.New(`either "command" or "prompt" is required`)

// resolveCommand turns a request into the command to run.
func resolveCommand(cfg *config.Config, req CommandRequest) (prompt.Command, int, error) {
	var cmd prompt.Command
	switch {
	case req.Command != "" && req.Prompt != "":
		return cmd, http.StatusBadRequest, errors.New(`"command" and "prompt" are mutually exclusive`)
	case req.Command != "":
		found, idx := cfg.FindCommand(req.Command)
		if idx < 0 {
			return cmd, http.StatusNotFound, config.ErrCommandNotFound
		}
		cmd = found
	case req.Prompt != "":
		cmd = engine.CustomCommand(req.Prompt)
	default:
		return cmd, http.StatusBadRequest, errNoCommand
	}
	if t := req.Temperature; t != nil && (*t < 0 || *t > 1) {
		return cmd, http.StatusBadRequest, errors.New("temperature must be within [0, 1]")
	}
	return cmd.WithOverrides(req.Model, req.Temperature), http.StatusOK, nil
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	cfg := s.store.Snapshot()
	cmd, status, err := resolveCommand(cfg, req.CommandRequest)
	if err != nil {
		writeError(w, status, err.Error(), codeFor(status))
		return
	}

	composed, res := prompt.Compose(cmd, cfg.Engine(), req.Text)
	resp := ComposeResponse{ComposedRequest: composed, Warnings: []string{}}
	if res.Fallback {
		resp.Warnings = append(resp.Warnings, engine.FallbackWarning)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	cfg := s.store.Snapshot()
	cmd, status, err := resolveCommand(cfg, req.CommandRequest)
	if err != nil {
		writeError(w, status, err.Error(), codeFor(status))
		return
	}

	doc := marker.NewBuffer(req.Document)
	if sel := req.Selection; sel != nil {
		if err := doc.Select(sel.From, sel.To); err != nil {
			writeError(w, http.StatusBadRequest, "selection: "+err.Error(), "bad_request")
			return
		}
	}
	if req.Cursor != nil {
		if err := doc.PlaceCursor(*req.Cursor); err != nil {
			writeError(w, http.StatusBadRequest, "cursor: "+err.Error(), "bad_request")
			return
		}
	}

	collector := &engine.Collector{}
	inv, err := s.engine(cfg).InvokeWith(r.Context(), collector, doc, cmd, cfg.Engine())

	resp := InvokeResponse{Document: doc.Value(), Warnings: collector.Warnings()}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if inv != nil {
		resp.ID = inv.ID
	}
	if err != nil {
		status := invokeStatus(err)
		resp.Error = err.Error()
		resp.Code = codeFor(status)
		writeJSON(w, status, resp)
		return
	}
	resp.Text = inv.Text
	writeJSON(w, http.StatusOK, resp)
}

// invokeStatus maps an invocation error onto an HTTP status.
func invokeStatus(err error) int {
	switch {
	case ollama.IsMalformedStream(err):
		return http.StatusUnprocessableEntity
	case ollama.IsTimeout(err):
		return http.StatusGatewayTimeout
	case ollama.IsTransport(err):
		return http.StatusBadGateway
	case errors.Is(err, marker.ErrMarkerLost):
		return http.StatusConflict
	case errors.Is(err, marker.ErrOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "marker_lost"
	case http.StatusUnprocessableEntity:
		return "malformed_stream"
	case http.StatusBadGateway:
		return "transport"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// ============================================================================
// HISTORY
// ============================================================================

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	items, err := s.history.List(r.Context(), parseLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "internal")
		return
	}
	if items == nil {
		items = []storage.Invocation{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	inv, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, storage.ErrAmbiguousID):
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error(), "internal")
	default:
		writeJSON(w, http.StatusOK, inv)
	}
}
