package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-tenant-session/sessionapi"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxRequestBody  = 1 << 20
)

// HealthHandler reports liveness
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// CreateSessionHandler mints a new session for a user on a tenant
func (s *Server) CreateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionapi.CreateSessionRequest
		if !s.decodeRequest(w, r, &req) {
			return
		}

		rec, err := s.identity.CreateSession(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

// RefreshSessionHandler mints a new access token from a refresh token
func (s *Server) RefreshSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionapi.RefreshRequest
		if !s.decodeRequest(w, r, &req) {
			return
		}

		rec, err := s.identity.RefreshToken(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// RevokeSessionHandler invalidates a refresh token. Unknown tokens still get 204.
func (s *Server) RevokeSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionapi.RevokeRequest
		if !s.decodeRequest(w, r, &req) {
			return
		}

		if err := s.identity.Revoke(r.Context(), req.RefreshToken); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// IntrospectHandler reports whether an access token is active (form field "token")
func (s *Server) IntrospectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, sessionapi.CodeInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		token := r.FormValue("token")
		if token == "" {
			writeJSONError(w, sessionapi.CodeInvalidRequest, "token parameter is required", http.StatusBadRequest)
			return
		}

		// Verification failures are reported as inactive, never as errors
		introspection, _ := s.identity.Introspect(token)
		writeJSON(w, http.StatusOK, introspection)
	}
}

// decodeRequest reads a JSON body into dst and validates it. It writes the error
// response itself and returns false when the request is unusable.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(dst); err != nil {
		writeJSONError(w, sessionapi.CodeInvalidRequest, "request body must be valid JSON", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSONError(w, sessionapi.CodeInvalidRequest, describeValidation(err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := sessionapi.StatusFor(err)
	description := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("identity service failure")
		description = "internal error"
	}
	writeJSONError(w, code, description, status)
}

func describeValidation(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	problems := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(problems, "; ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSONError writes an error response in the shared ErrorResponse shape
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, sessionapi.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
