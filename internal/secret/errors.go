package secret

import "errors"

// Error taxonomy shared by all backends. Callers match with errors.Is;
// backends wrap these with provider-specific detail via fmt.Errorf and %w.
var (
	// ErrBackendUnavailable means the provider is locked, signed out,
	// or its CLI is not installed. Surfaces as actionable guidance
	// ("unlock the vault") rather than a hard failure.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrConnectionFailed means the provider process could not be
	// spawned or exited non-zero.
	ErrConnectionFailed = errors.New("backend connection failed")

	// ErrStoreFailed means the provider accepted the command but the
	// write did not take effect (parse or remote-side failure).
	ErrStoreFailed = errors.New("store failed")

	// ErrRetrieveFailed means a lookup failed in a way other than
	// "item absent"; absence is reported as (nil, nil), not an error.
	ErrRetrieveFailed = errors.New("retrieve failed")
)
