package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/lychee-technology/apischema/internal"
)

// apiHandler dispatches /api/v1/apis/{id}[/{action}]
func (s *Server) apiHandler(w http.ResponseWriter, r *http.Request) {
	id, action, err := parsePath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.handleGet(w, r, id)
		case http.MethodPost, http.MethodPatch:
			s.handleSubmit(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "form":
		s.handleEditForm(w, r, id)
	case "jsonschema":
		s.handleJSONSchema(w, r, id)
	case "example":
		s.handleExample(w, r, id)
	case "export":
		s.handleExport(w, r, id)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown action: %s", action))
	}
}

// handleCreate handles POST /api/v1/apis
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	form, err := readForm(w, r, s.maxFormMemory)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form body: %v", err))
		return
	}

	id, data, err := s.service.Create(r.Context(), form)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{
		"id":  id,
		"api": data,
	})
}

// handleGet handles GET /api/v1/apis/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	data, err := s.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, data)
}

// handleSubmit handles PATCH|POST /api/v1/apis/{id}
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, id string) {
	form, err := readForm(w, r, s.maxFormMemory)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form body: %v", err))
		return
	}

	data, err := s.service.Submit(r.Context(), id, form)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, data)
}

// handleEditForm handles GET /api/v1/apis/{id}/form
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshot, err := s.service.EditForm(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, snapshot)
}

// handleJSONSchema handles GET /api/v1/apis/{id}/jsonschema?part=...
func (s *Server) handleJSONSchema(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	part, err := parsePart(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schema, err := s.service.JSONSchema(r.Context(), id, part)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// the schema document is returned as is so that tools can consume it directly
	writeJSON(w, http.StatusOK, schema)
}

// handleExample handles GET /api/v1/apis/{id}/example?part=...&mock=true
func (s *Server) handleExample(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	part, err := parsePart(query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	useMock := false
	if v := query.Get("mock"); v != "" {
		useMock, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid mock flag: %v", err))
			return
		}
	}

	example, err := s.service.Example(r.Context(), id, part, useMock)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, example)
}

// handleExport handles POST /api/v1/apis/{id}/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	location, err := s.service.Export(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"location": location})
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok", "store": "memory"})
		return
	}
	if err := internal.PingPostgres(r.Context(), s.db, 0); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok", "store": "postgres"})
}
