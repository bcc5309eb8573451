package introspection

import (
	"sort"
	"strings"
	"time"

	"github.com/lumonhealth/oidc-core/internal/util"
	"github.com/lumonhealth/oidc-core/storage"
)

// Response is the RFC 7662 introspection response shape, plus the
// non-standard permissions array emitted for tokens carrying fine-grained
// authorization. When permissions are present, scope is omitted entirely.
type Response struct {
	Active      bool                 `json:"active"`
	Scope       string               `json:"scope,omitempty"`
	Permissions []storage.Permission `json:"permissions,omitempty"`
	Exp         int64                `json:"exp,omitempty"`
	ExpiresAt   string               `json:"expires_at,omitempty"`
	Sub         string               `json:"sub,omitempty"`
	UserID      string               `json:"user_id,omitempty"`
	ClientID    string               `json:"client_id,omitempty"`
	TokenType   string               `json:"token_type,omitempty"`
}

// UserInfo is the caller-supplied profile of the token's subject, when the
// introspection caller has resolved one.
type UserInfo struct {
	Subject           string
	PreferredUsername string
}

// AssembleFromAccessToken projects an access token into the introspection
// response. The scope field is the sorted, space-joined intersection of the
// caller's authorized scope and the token's scope, so a caller never learns
// of scopes it does not itself hold. Tokens with fine-grained permissions
// report those instead of a scope.
func AssembleFromAccessToken(token *storage.AccessToken, auth *storage.AuthenticationContext, userInfo *UserInfo, callerScope []string) *Response {
	r := &Response{
		Active:    true,
		ClientID:  token.ClientID,
		TokenType: token.TokenType,
	}

	if len(token.Permissions) > 0 {
		r.Permissions = token.Permissions
	} else {
		r.Scope = intersectScope(callerScope, token.Scope)
	}

	setExpiration(r, token.Expiration)
	setSubject(r, auth, userInfo)
	return r
}

// AssembleFromRefreshToken projects a refresh token into the introspection
// response. Refresh tokens carry no fine-grained permissions and no token
// type; the scope reported is the intersection of the caller's scope and the
// original grant's scope.
func AssembleFromRefreshToken(token *storage.RefreshToken, auth *storage.AuthenticationContext, userInfo *UserInfo, callerScope []string) *Response {
	r := &Response{
		Active:   true,
		ClientID: token.ClientID,
	}

	var grantScope []string
	if auth != nil {
		grantScope = auth.Scope
	}
	r.Scope = intersectScope(callerScope, grantScope)

	setExpiration(r, token.Expiration)
	setSubject(r, auth, userInfo)
	return r
}

func setExpiration(r *Response, expiration *time.Time) {
	if expiration == nil {
		return
	}
	r.Exp = expiration.Unix()
	r.ExpiresAt = expiration.UTC().Format(time.RFC3339)
}

func setSubject(r *Response, auth *storage.AuthenticationContext, userInfo *UserInfo) {
	if userInfo != nil && userInfo.Subject != "" {
		r.Sub = userInfo.Subject
	} else if auth != nil {
		r.Sub = auth.Principal
	}
	// user_id names the authenticated user. A client-only grant has the
	// client itself as principal and carries no user identity to report.
	if auth != nil && auth.Principal != "" && auth.Principal != auth.ClientID {
		r.UserID = auth.Principal
	}
}

// intersectScope returns the sorted, space-joined intersection of the two
// scope sets.
func intersectScope(callerScope, tokenScope []string) string {
	shared := util.Intersect(callerScope, tokenScope)
	sort.Strings(shared)
	return strings.Join(shared, " ")
}
