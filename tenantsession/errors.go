package tenantsession

import (
	apperrors "github.com/jrsteele09/go-tenant-session/internal/errors"
)

// Failures surfaced by CreateSession, RefreshAccessToken and the Transport.
// Callers branch with errors.Is and redirect to tenant selection.
var (
	ErrAccessDenied    = apperrors.ErrAccessDenied   // no active role on the tenant; not retried
	ErrTenantInactive  = apperrors.ErrTenantInactive // tenant deactivated; not retried
	ErrTokenExpired    = apperrors.ErrTokenExpired   // refresh credential past expiresAt
	ErrBackend         = apperrors.ErrBackend        // transport or 5xx; caller may offer "try again"
	ErrNoActiveSession = apperrors.ErrNoActiveSession
	ErrInvalidInput    = apperrors.ErrInvalidRequest
)

// classify keeps known taxonomy errors as they are and folds everything else into ErrBackend.
func classify(err error) error {
	for _, known := range []error{
		apperrors.ErrAccessDenied,
		apperrors.ErrTenantInactive,
		apperrors.ErrTokenExpired,
		apperrors.ErrInvalidRefreshToken,
		apperrors.ErrInvalidRequest,
		apperrors.ErrBackend,
	} {
		if apperrors.Is(err, known) {
			return err
		}
	}
	return apperrors.Wrapf(apperrors.ErrBackend, "%v", err)
}
