package token

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/storage"
)

// JWTEnhancer is the default Enhancer: it serializes access tokens as signed
// JWTs, replacing the opaque token value. The opaque value is preserved as
// the jti claim so storage lookups still have a unique handle.
type JWTEnhancer struct {
	issuer string
	method jwt.SigningMethod
	key    any
	clock  oidc.Clock
}

// NewJWTEnhancer creates a JWT enhancer. key must match the signing method:
// a []byte secret for HMAC methods, a *rsa.PrivateKey or *ecdsa.PrivateKey
// for asymmetric methods.
func NewJWTEnhancer(issuer string, method jwt.SigningMethod, key any, clock oidc.Clock) (*JWTEnhancer, error) {
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if method == nil {
		return nil, fmt.Errorf("signing method is required")
	}
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if clock == nil {
		clock = oidc.SystemClock{}
	}
	return &JWTEnhancer{
		issuer: issuer,
		method: method,
		key:    key,
		clock:  clock,
	}, nil
}

// Enhance signs the token and swaps its value for the compact JWT form
func (e *JWTEnhancer) Enhance(ctx context.Context, token *storage.AccessToken, auth *storage.AuthenticationContext) (*storage.AccessToken, error) {
	claims := jwt.MapClaims{
		"iss":   e.issuer,
		"aud":   token.ClientID,
		"jti":   token.Value,
		"iat":   jwt.NewNumericDate(e.clock.Now()),
		"scope": strings.Join(token.Scope, " "),
	}
	if auth != nil && auth.Principal != "" {
		claims["sub"] = auth.Principal
	}
	if token.Expiration != nil {
		claims["exp"] = jwt.NewNumericDate(*token.Expiration)
	}

	signed, err := jwt.NewWithClaims(e.method, claims).SignedString(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	token.Value = signed
	return token, nil
}
