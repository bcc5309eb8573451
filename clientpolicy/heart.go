package clientpolicy

import (
	"fmt"
	"net/url"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/internal/util"
	"github.com/lumonhealth/oidc-core/storage"
)

// redirectClass partitions redirect URIs for the HEART profile. A compliant
// client's redirect URIs must all fall into exactly one class.
type redirectClass int

const (
	classUnknown redirectClass = iota
	classLoopbackHTTP
	classRemoteHTTPS
	classCustomScheme
)

// loopbackHosts are the hostnames recognized as loopback for native clients
var loopbackHosts = []string{"localhost", "127.0.0.1", "::1", "[::1]"}

// validateHeart enforces the HEART client profile. Active only when the
// server-wide HEART flag is set. Any violation is a configuration error
// identifying the failed rule; the client is not persisted.
func validateHeart(client *storage.Client) error {
	if err := heartGrantTypes(client); err != nil {
		return err
	}
	if err := heartAuthMethod(client); err != nil {
		return err
	}
	if err := heartRedirectURIs(client); err != nil {
		return err
	}
	if client.Secret != "" || client.SecretHash != "" {
		return oidc.ErrInvalidClientMetadata("HEART profile does not allow client secrets")
	}
	if len(client.JWKS) == 0 && client.JWKSURI == "" {
		return oidc.ErrInvalidClientMetadata("HEART profile requires a key via jwks or jwks_uri")
	}
	return nil
}

// heartGrantTypes enforces grant type mutual exclusion: exactly one of
// authorization_code, implicit, or client_credentials, with refresh_token
// permitted only alongside authorization_code. The password grant is always
// forbidden.
func heartGrantTypes(client *storage.Client) error {
	if util.Contains(client.GrantTypes, oidc.GrantTypePassword) {
		return oidc.ErrInvalidClientMetadata("HEART profile does not allow the password grant")
	}

	primary := 0
	for _, gt := range []string{oidc.GrantTypeAuthorizationCode, oidc.GrantTypeImplicit, oidc.GrantTypeClientCredentials} {
		if util.Contains(client.GrantTypes, gt) {
			primary++
		}
	}
	if primary != 1 {
		return oidc.ErrInvalidClientMetadata(
			"HEART profile requires exactly one of authorization_code, implicit, or client_credentials")
	}

	if util.Contains(client.GrantTypes, oidc.GrantTypeRefreshToken) &&
		!util.Contains(client.GrantTypes, oidc.GrantTypeAuthorizationCode) {
		return oidc.ErrInvalidClientMetadata(
			"HEART profile allows refresh_token only together with authorization_code")
	}
	return nil
}

// heartAuthMethod enforces the required token endpoint auth method per grant:
// authorization_code and client_credentials require private_key_jwt;
// implicit requires none.
func heartAuthMethod(client *storage.Client) error {
	switch {
	case util.Contains(client.GrantTypes, oidc.GrantTypeAuthorizationCode),
		util.Contains(client.GrantTypes, oidc.GrantTypeClientCredentials):
		if client.TokenEndpointAuthMethod != oidc.TokenEndpointAuthMethodPrivateKey {
			return oidc.ErrInvalidClientMetadata(
				"HEART profile requires private_key_jwt authentication for this grant type")
		}
	case util.Contains(client.GrantTypes, oidc.GrantTypeImplicit):
		if client.TokenEndpointAuthMethod != oidc.TokenEndpointAuthMethodNone {
			return oidc.ErrInvalidClientMetadata(
				"HEART profile requires token_endpoint_auth_method 'none' for implicit clients")
		}
	}
	return nil
}

// heartRedirectURIs enforces redirect URI count rules per grant and class
// homogeneity: all URIs loopback-http, all remote-https, or all
// custom-scheme, never a mix.
func heartRedirectURIs(client *storage.Client) error {
	usesRedirects := util.Contains(client.GrantTypes, oidc.GrantTypeAuthorizationCode) ||
		util.Contains(client.GrantTypes, oidc.GrantTypeImplicit)

	if usesRedirects && len(client.RedirectURIs) == 0 {
		return oidc.ErrInvalidClientMetadata(
			"HEART profile requires at least one redirect URI for redirect-based grants")
	}
	if util.Contains(client.GrantTypes, oidc.GrantTypeClientCredentials) && len(client.RedirectURIs) > 0 {
		return oidc.ErrInvalidClientMetadata(
			"HEART profile forbids redirect URIs for client_credentials clients")
	}

	seen := classUnknown
	for _, raw := range client.RedirectURIs {
		class, err := classifyRedirectURI(raw)
		if err != nil {
			return err
		}
		if seen == classUnknown {
			seen = class
			continue
		}
		if class != seen {
			return oidc.ErrInvalidClientMetadata(
				"HEART profile requires all redirect URIs to be of the same class " +
					"(loopback http, remote https, or custom scheme)")
		}
	}
	return nil
}

// classifyRedirectURI assigns a redirect URI to its HEART class
func classifyRedirectURI(raw string) (redirectClass, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return classUnknown, oidc.ErrInvalidClientMetadata(fmt.Sprintf("invalid redirect URI %q: %v", raw, err))
	}
	switch u.Scheme {
	case "http":
		if util.Contains(loopbackHosts, u.Hostname()) {
			return classLoopbackHTTP, nil
		}
		return classUnknown, oidc.ErrInvalidClientMetadata(
			fmt.Sprintf("HEART profile allows http redirect URIs only on loopback hosts, got %q", raw))
	case "https":
		if util.Contains(loopbackHosts, u.Hostname()) {
			return classUnknown, oidc.ErrInvalidClientMetadata(
				fmt.Sprintf("HEART profile requires remote hosts for https redirect URIs, got %q", raw))
		}
		return classRemoteHTTPS, nil
	case "":
		return classUnknown, oidc.ErrInvalidClientMetadata(fmt.Sprintf("redirect URI %q has no scheme", raw))
	default:
		return classCustomScheme, nil
	}
}
