package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/server/ratelimit"
	"github.com/jonathan/application-tracker/internal/tracker"
	"github.com/jonathan/application-tracker/internal/types"
)

// maxJSONBody bounds request bodies other than imports.
const maxJSONBody = 1 << 20

// Pagination is the list metadata of the envelope.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Envelope is the body of every JSON response.
type Envelope struct {
	Success    bool                `json:"success"`
	Data       any                 `json:"data,omitempty"`
	Message    string              `json:"message,omitempty"`
	Errors     []types.FieldError  `json:"errors,omitempty"`
	Pagination *Pagination         `json:"pagination,omitempty"`
	Failed     []tracker.FailedRow `json:"failed,omitempty"`
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) ok(w http.ResponseWriter, status int, data any) {
	s.jsonResponse(w, status, Envelope{Success: true, Data: data})
}

// writeError is the single place errors become HTTP responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	body := Envelope{Success: false, Message: publicMessage(err), Errors: types.Violations(err)}

	switch {
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	case status == http.StatusUnauthorized:
		s.logger.Debug("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
	}

	s.jsonResponse(w, status, body)
}

// rateLimited answers a request the limiter denied.
func (s *Server) rateLimited(w http.ResponseWriter, _ *http.Request, info ratelimit.Info) {
	msg := "Too many requests, please try again later"
	if info.Limit == 0 {
		msg = "Access denied"
	}
	s.jsonResponse(w, http.StatusTooManyRequests, Envelope{Success: false, Message: msg})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusNotFound, Envelope{Success: false, Message: "Route " + r.URL.Path + " not found"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusMethodNotAllowed, Envelope{Success: false, Message: "Method " + r.Method + " not allowed"})
}

// decodeJSON reads a JSON body into dst, reporting malformed input as a
// validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var (
		typeErr  *json.UnmarshalTypeError
		syntax   *json.SyntaxError
		tooLarge *http.MaxBytesError
	)
	fe := types.FieldError{Field: "body", Reason: "is not valid JSON"}
	switch {
	case errors.Is(err, io.EOF):
		fe.Reason = "is required"
	case errors.As(err, &tooLarge):
		fe.Reason = "is too large"
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			fe.Field = typeErr.Field
		}
		fe.Reason = "must be a " + typeErr.Type.Kind().String()
	case errors.As(err, &syntax):
	default:
		// Custom unmarshalers such as dates report their own reason.
		if msg := err.Error(); strings.Contains(msg, "date") {
			fe.Reason = msg
		}
	}
	return types.NewValidationError([]types.FieldError{fe})
}
