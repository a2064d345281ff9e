package main

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lychee-technology/apischema"
	"go.uber.org/zap"
)

// parsePath parses /api/v1/apis/{id} or /api/v1/apis/{id}/{action}
func parsePath(path string) (id string, action string, err error) {
	path = strings.TrimPrefix(path, "/api/v1/apis")
	path = strings.Trim(path, "/")

	if path == "" {
		return "", "", fmt.Errorf("invalid path: empty api id")
	}

	parts := strings.Split(path, "/")

	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("invalid path format")
	}
}

// parsePart reads the schema part from the query, defaulting to the response.
func parsePart(query url.Values) (apischema.SchemaPart, error) {
	part := apischema.SchemaPart(query.Get("part"))
	if part == "" {
		return apischema.PartResponse, nil
	}
	if !part.Valid() {
		return "", fmt.Errorf("part must be %s or %s", apischema.PartBodyJSON, apischema.PartResponse)
	}
	return part, nil
}

// readForm parses an urlencoded or multipart form body and returns the posted fields.
func readForm(w http.ResponseWriter, r *http.Request, maxMemory int64) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMemory)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, err
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
	return r.PostForm, nil
}

// APIResponse is the standard response format
type APIResponse struct {
	Success     bool              `json:"success"`
	Data        any               `json:"data,omitempty"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) error {
	return writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, statusCode int, data any) error {
	return writeJSON(w, statusCode, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeServiceError maps a service error onto an HTTP status.
func writeServiceError(w http.ResponseWriter, err error) error {
	if report, ok := apischema.AsValidationReport(err); ok {
		return writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
			Success:     false,
			Error:       "validation failed",
			FieldErrors: report,
		})
	}

	var apiErr *apischema.Error
	if !errors.As(err, &apiErr) {
		zap.S().Errorw("unexpected service error", "error", err)
		return writeError(w, http.StatusInternalServerError, err.Error())
	}

	status := http.StatusInternalServerError
	switch apiErr.Type {
	case apischema.ErrorTypeValidation:
		status = http.StatusBadRequest
	case apischema.ErrorTypeNotFound:
		status = http.StatusNotFound
	case apischema.ErrorTypeConflict:
		status = http.StatusConflict
	case apischema.ErrorTypeArchive:
		status = http.StatusBadGateway
		if apiErr.Code == apischema.ErrCodeArchiveNotConfigured {
			status = http.StatusNotImplemented
		}
	}
	if status >= http.StatusInternalServerError {
		zap.S().Errorw("service error", "code", apiErr.Code, "error", err)
	}
	return writeError(w, status, apiErr.Error())
}
