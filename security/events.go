package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// Token lifecycle events

	// EventTokenIssued is logged when a new access token is issued to a client
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when an access token is refreshed using a refresh token
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a token is revoked or lazily expired
	EventTokenRevoked = "token_revoked"

	// EventGrantFailure is logged when a token grant fails (invalid code,
	// invalid refresh token, scope violation, client mismatch)
	EventGrantFailure = "grant_failure"

	// EventInvalidPKCE is logged when PKCE verification fails
	EventInvalidPKCE = "invalid_pkce"

	// Authorization artifacts

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventDeviceCodeIssued is logged when a device/user code pair is issued
	EventDeviceCodeIssued = "device_code_issued"

	// EventDeviceCodeApproved is logged when a user approves a device code
	EventDeviceCodeApproved = "device_code_approved"

	// Client registration events

	// EventClientRegistrationRejected is logged when a client registration or
	// update is rejected by policy validation
	EventClientRegistrationRejected = "client_registration_rejected"

	// EventSectorFetchFailed is logged when a sector identifier document
	// cannot be fetched or parsed
	EventSectorFetchFailed = "sector_identifier_fetch_failed"

	// Maintenance events

	// EventExpiredSweep is logged when an expiry sweep completes
	EventExpiredSweep = "expired_sweep"
)
