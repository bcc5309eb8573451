package oidc

// Grant type constants (RFC 6749, RFC 8628)
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeImplicit          = "implicit"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
)

// Token endpoint authentication method constants (RFC 7591)
const (
	// TokenEndpointAuthMethodNone represents no authentication (public clients)
	TokenEndpointAuthMethodNone = "none"

	// TokenEndpointAuthMethodBasic represents HTTP Basic authentication
	TokenEndpointAuthMethodBasic = "client_secret_basic"

	// TokenEndpointAuthMethodPost represents POST form parameters
	TokenEndpointAuthMethodPost = "client_secret_post"

	// TokenEndpointAuthMethodSecretJWT represents a JWT signed with the client secret
	TokenEndpointAuthMethodSecretJWT = "client_secret_jwt"

	// TokenEndpointAuthMethodPrivateKey represents a JWT signed with the client's private key
	TokenEndpointAuthMethodPrivateKey = "private_key_jwt"
)

// Scope value constants
const (
	// ScopeOfflineAccess is the scope that gates refresh token issuance
	ScopeOfflineAccess = "offline_access"

	// ScopeOpenID is the base OpenID Connect scope
	ScopeOpenID = "openid"

	// ScopeRegistrationToken backs client self-management tokens issued at
	// dynamic registration time. Reserved: no client may request it.
	ScopeRegistrationToken = "registration-token"

	// ScopeResourceToken backs protected-resource self-management tokens.
	// Reserved: no client may request it.
	ScopeResourceToken = "resource-token"
)

// PKCE constants (RFC 7636)
const (
	// PKCEParamCodeChallenge is the extension key carrying the stored code challenge
	PKCEParamCodeChallenge = "code_challenge"

	// PKCEParamCodeChallengeMethod is the extension key carrying the challenge method
	PKCEParamCodeChallengeMethod = "code_challenge_method"

	// PKCEParamCodeVerifier is the extension key carrying the verifier presented
	// at the token endpoint
	PKCEParamCodeVerifier = "code_verifier"

	// PKCEMethodPlain compares challenge and verifier byte for byte
	PKCEMethodPlain = "plain"

	// PKCEMethodS256 compares the challenge against base64url(SHA-256(verifier))
	PKCEMethodS256 = "S256"
)

// Extension keys carried on an AuthenticationContext
const (
	// ExtApprovedSite links a token to the approved-site record that captured
	// the user's consent
	ExtApprovedSite = "approved_site"
)

// TokenTypeBearer is the token_type issued for all access tokens
const TokenTypeBearer = "Bearer"
