package sessionapi

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-tenant-session/internal/errors"
)

// Error codes carried in ErrorResponse.Error
const (
	CodeAccessDenied   = "access_denied"
	CodeTenantInactive = "tenant_inactive"
	CodeInvalidGrant   = "invalid_grant"
	CodeTokenExpired   = "token_expired"
	CodeInvalidRequest = "invalid_request"
	CodeServerError    = "server_error"
)

// StatusFor maps an error from the identity service to an HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case apperrors.Is(err, apperrors.ErrTenantInactive):
		return http.StatusForbidden, CodeTenantInactive
	case apperrors.Is(err, apperrors.ErrAccessDenied),
		apperrors.Is(err, apperrors.ErrTenantNotFound),
		apperrors.Is(err, apperrors.ErrUserNotFound):
		return http.StatusForbidden, CodeAccessDenied
	case apperrors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, CodeTokenExpired
	case apperrors.Is(err, apperrors.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, CodeInvalidGrant
	default:
		return http.StatusInternalServerError, CodeServerError
	}
}

// ErrorFor maps a response status and error code back to the shared error taxonomy.
// Anything unrecognised, including every 5xx, is a backend failure.
func ErrorFor(status int, code string) error {
	if status >= http.StatusInternalServerError {
		return apperrors.ErrBackend
	}
	switch code {
	case CodeAccessDenied:
		return apperrors.ErrAccessDenied
	case CodeTenantInactive:
		return apperrors.ErrTenantInactive
	case CodeTokenExpired:
		return apperrors.ErrTokenExpired
	case CodeInvalidGrant:
		return apperrors.ErrInvalidRefreshToken
	case CodeInvalidRequest:
		return apperrors.ErrInvalidRequest
	}
	switch status {
	case http.StatusUnauthorized:
		return apperrors.ErrInvalidRefreshToken
	case http.StatusForbidden:
		return apperrors.ErrAccessDenied
	}
	return apperrors.ErrBackend
}
