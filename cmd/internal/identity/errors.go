package identity

import "errors"

var (
	// ErrSessionNotFound is returned when the provider has no session with the given id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionAlreadyRevoked is returned when a revoke targets a session that is
	// no longer active. Callers racing on the same excess session treat this as a no-op.
	ErrSessionAlreadyRevoked = errors.New("session already revoked")

	// ErrProviderUnavailable is returned for transport failures and unexpected
	// provider status codes. The caller should surface a 5xx so the provider's
	// webhook delivery retries.
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrInvalidToken is returned when a session bearer token fails verification.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrConfig is returned for invalid client configuration.
	ErrConfig = errors.New("invalid identity config")
)
