package web

// errors.go provides unified error responses for the web layer.
//
// Every handler error goes through respondError, which:
//  1. Picks the HTTP status from the error's identity (statusFor)
//  2. Maps the error to a user message and code via normalize.MapError
//  3. Logs the technical error with the request ID for correlation
//  4. Renders JSON for API clients and an HTML page otherwise

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetnorm/internal/history"
	"github.com/JonMunkholm/sheetnorm/internal/logging"
	"github.com/JonMunkholm/sheetnorm/internal/normalize"
	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/JonMunkholm/sheetnorm/internal/sheet"
)

var (
	// errNoFile is returned when a multipart request has no "file" part.
	errNoFile = errors.New("no file provided")

	// errFileTooLarge is returned when a body exceeds the upload size limit.
	errFileTooLarge = errors.New("file too large")

	// errInvalidGrid is returned when a JSON grid body cannot be decoded.
	errInvalidGrid = errors.New("invalid grid")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// respondError logs err and writes the matching user-facing response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := normalize.MapError(err)

	logging.FromContext(r.Context()).Warn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = errorPage(userMsg).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	// Profile problems are the user's own configuration, so they are shown.
	var invalid *profile.InvalidError
	if errors.As(err, &invalid) {
		resp.Details = invalid.Problems
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound), errors.Is(err, history.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrInvalidProfile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTooManyUploads):
		return http.StatusTooManyRequests
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, sheet.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, sheet.ErrEmptyFile), errors.Is(err, sheet.ErrInvalidCSV),
		errors.Is(err, errNoFile), errors.Is(err, errInvalidGrid):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
