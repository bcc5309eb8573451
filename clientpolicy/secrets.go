package clientpolicy

import (
	"golang.org/x/crypto/bcrypt"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/storage"
)

// dummySecretHash is a bcrypt hash of a throwaway value. Comparing against
// it when a client has no stored hash keeps verification time constant
// regardless of whether the client exists or carries a secret.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashClientSecret hashes a client secret for storage
func HashClientSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyClientSecret checks a presented secret against the client's stored
// hash. A bcrypt comparison is always performed, even for unknown clients
// and public clients, so response timing does not reveal which case was hit.
// Public clients (token_endpoint_auth_method "none") always pass.
func VerifyClientSecret(client *storage.Client, secret string) error {
	hashToCompare := dummySecretHash
	if client != nil && client.SecretHash != "" {
		hashToCompare = client.SecretHash
	}

	cmpErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(secret))

	if client == nil {
		return oidc.ErrInvalidClient("client authentication failed")
	}
	if client.TokenEndpointAuthMethod == oidc.TokenEndpointAuthMethodNone {
		return nil
	}
	if client.SecretHash == "" || cmpErr != nil {
		return oidc.ErrInvalidClient("client authentication failed")
	}
	return nil
}
