package token

import (
	"context"

	"github.com/lumonhealth/oidc-core/storage"
)

// Enhancer is the token-enrichment hook invoked after a token is built and
// before it is persisted. Implementations may populate claims or replace the
// token value with a signed representation; the service persists exactly what
// the enhancer returns.
type Enhancer interface {
	Enhance(ctx context.Context, token *storage.AccessToken, auth *storage.AuthenticationContext) (*storage.AccessToken, error)
}

// EnhancerFunc adapts a function to the Enhancer interface.
type EnhancerFunc func(ctx context.Context, token *storage.AccessToken, auth *storage.AuthenticationContext) (*storage.AccessToken, error)

// Enhance calls f
func (f EnhancerFunc) Enhance(ctx context.Context, token *storage.AccessToken, auth *storage.AuthenticationContext) (*storage.AccessToken, error) {
	return f(ctx, token, auth)
}
