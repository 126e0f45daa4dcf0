package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the session store, the identity backend and its HTTP client.
var (
	// Access errors
	ErrAccessDenied   = errors.New("access denied")
	ErrTenantInactive = errors.New("tenant inactive")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrUserNotFound   = errors.New("user not found")

	// Token errors
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Session errors
	ErrNoActiveSession = errors.New("no active session")

	// Transport errors
	ErrBackend = errors.New("identity backend unavailable")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
