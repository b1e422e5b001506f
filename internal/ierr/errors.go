package ierr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")

	// Authentication failure causes. Every one of them is surfaced to the
	// caller as the same generic 401 so the response does not reveal which
	// check rejected the credential.
	ErrMissingAuthHeader = errors.New("authorization header required")
	ErrMalformedScheme   = errors.New("invalid authorization scheme")
	ErrMalformedCred     = errors.New("malformed bearer credential")
	ErrAPIKeyNotFound    = errors.New("api key not found")
	ErrSecretMismatch    = errors.New("api key secret mismatch")
	ErrAPIKeyInactive    = errors.New("api key is inactive")

	ErrInsufficientScope = errors.New("insufficient scope")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	ErrUpstreamInput     = errors.New("mail gateway rejected request")
	ErrUpstreamTransport = errors.New("mail gateway unavailable")

	ErrAPIKeyUpdateFailed = errors.New("api key update failed")
)

// IsAuthFailure reports whether err is one of the authentication failure
// causes that collapse to a single generic 401 at the boundary.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrMissingAuthHeader) ||
		errors.Is(err, ErrMalformedScheme) ||
		errors.Is(err, ErrMalformedCred) ||
		errors.Is(err, ErrAPIKeyNotFound) ||
		errors.Is(err, ErrSecretMismatch) ||
		errors.Is(err, ErrAPIKeyInactive)
}
