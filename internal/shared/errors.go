package shared

import "errors"

// Domain error taxonomy shared across modules. Services wrap these with
// context via fmt.Errorf("...: %w", Err...) and handlers map them to HTTP
// status codes in platform/httpx.
var (
	// ErrUnauthenticated indicates a missing or invalid credential.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates a valid principal with insufficient role or department scope.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates a malformed or incomplete request.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a unique-constraint violation.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates the target row is absent.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable indicates the underlying store could not be reached.
	ErrUnavailable = errors.New("service unavailable")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserSafeMessage returns a short message safe to surface to end users.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "You must be logged in"
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action"
	case errors.Is(err, ErrValidation):
		return "The request could not be processed, check the submitted fields"
	case errors.Is(err, ErrConflict):
		return "The record already exists"
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	default:
		return "Something went wrong, please try again"
	}
}
