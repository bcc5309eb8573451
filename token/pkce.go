package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	oidc "github.com/lumonhealth/oidc-core"
)

// verifyPKCE checks the proof-key parameters carried on an authentication's
// extension map (RFC 7636). The check is skipped entirely when no challenge
// was stored: PKCE is opt-in per authorization request, not server-mandated.
func verifyPKCE(extensions map[string]string) error {
	challenge := extensions[oidc.PKCEParamCodeChallenge]
	if challenge == "" {
		return nil
	}

	verifier := extensions[oidc.PKCEParamCodeVerifier]
	if verifier == "" {
		return oidc.ErrInvalidRequest("code_verifier is required")
	}

	method := extensions[oidc.PKCEParamCodeChallengeMethod]
	switch method {
	case oidc.PKCEMethodPlain, "":
		if subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) != 1 {
			return oidc.ErrInvalidRequest("code_verifier does not match code_challenge")
		}
	case oidc.PKCEMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(challenge), []byte(computed)) != 1 {
			return oidc.ErrInvalidRequest("code_verifier does not match code_challenge")
		}
	default:
		return oidc.ErrInvalidRequest(fmt.Sprintf("unsupported code_challenge_method %q", method))
	}

	return nil
}
