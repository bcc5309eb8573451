package clientpolicy

import (
	"context"
	"encoding/json"
	"testing"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/internal/testutil"
	"github.com/lumonhealth/oidc-core/internal/util"
	"github.com/lumonhealth/oidc-core/scope"
	"github.com/lumonhealth/oidc-core/storage"
	"github.com/lumonhealth/oidc-core/storage/memory"
)

// validJWKS is a minimal JWK set that parses
const validJWKS = `{"keys":[{"kty":"oct","k":"c2VjcmV0LXNpZ25pbmcta2V5"}]}`

func newTestValidator(t *testing.T, cfg *oidc.Config) *Validator {
	t.Helper()
	store := memory.New()
	reg := scope.New(store, cfg, nil)
	for _, s := range []*storage.SystemScope{
		{Value: "openid", DefaultScope: true},
		{Value: "profile", DefaultScope: true},
	} {
		if _, err := reg.Save(context.Background(), s); err != nil {
			t.Fatalf("Save(%q) failed: %v", s.Value, err)
		}
	}
	v, err := New(reg, cfg, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return v
}

func TestValidateNewClient(t *testing.T) {
	ctx := context.Background()

	t.Run("generates client id and secret for secret-based auth", func(t *testing.T) {
		v := newTestValidator(t, &oidc.Config{})
		c, err := v.ValidateNewClient(ctx, &storage.Client{
			GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
			Scope:                   []string{"openid"},
			RedirectURIs:            []string{"https://app.example.com/cb"},
			TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodBasic,
		})
		if err != nil {
			t.Fatalf("ValidateNewClient() failed: %v", err)
		}
		if c.ClientID == "" {
			t.Error("no client id generated")
		}
		if c.Secret == "" {
			t.Error("no secret generated for client_secret_basic")
		}
	})

	t.Run("no secret generated for public clients", func(t *testing.T) {
		v := newTestValidator(t, &oidc.Config{})
		c, err := v.ValidateNewClient(ctx, &storage.Client{
			GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
			Scope:                   []string{"openid"},
			RedirectURIs:            []string{"https://app.example.com/cb"},
			TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodNone,
		})
		if err != nil {
			t.Fatalf("ValidateNewClient() failed: %v", err)
		}
		if c.Secret != "" {
			t.Error("secret generated for a public client")
		}
	})

	t.Run("supplied client id is kept", func(t *testing.T) {
		v := newTestValidator(t, &oidc.Config{})
		c, err := v.ValidateNewClient(ctx, &storage.Client{
			ClientID:                "chosen-id",
			GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
			Scope:                   []string{"openid"},
			TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodNone,
		})
		if err != nil {
			t.Fatalf("ValidateNewClient() failed: %v", err)
		}
		if c.ClientID != "chosen-id" {
			t.Errorf("client id = %q, want chosen-id", c.ClientID)
		}
	})

	t.Run("empty scope falls back to the default scopes", func(t *testing.T) {
		v := newTestValidator(t, &oidc.Config{})
		c, err := v.ValidateNewClient(ctx, &storage.Client{
			GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
			TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodNone,
		})
		if err != nil {
			t.Fatalf("ValidateNewClient() failed: %v", err)
		}
		if !util.Contains(c.Scope, "openid") || !util.Contains(c.Scope, "profile") {
			t.Errorf("scope = %v, want the registered defaults", c.Scope)
		}
	})
}

func TestUnsupportedGrantTypeRejected(t *testing.T) {
	v := newTestValidator(t, &oidc.Config{})
	_, err := v.ValidateNewClient(context.Background(), &storage.Client{
		GrantTypes:              []string{"urn:ietf:params:oauth:grant-type:saml2-bearer"},
		Scope:                   []string{"openid"},
		TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodNone,
	})
	if oidc.CodeOf(err) != oidc.ErrorCodeInvalidClientMetadata {
		t.Fatalf("error code = %q, want invalid_client_metadata (err: %v)", oidc.CodeOf(err), err)
	}
}

func TestRefreshConsistency(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		grantTypes []string
		scope      []string
	}{
		{"grant forces scope", []string{oidc.GrantTypeAuthorizationCode, oidc.GrantTypeRefreshToken}, []string{"openid"}},
		{"scope forces grant", []string{oidc.GrantTypeAuthorizationCode}, []string{"openid", oidc.ScopeOfflineAccess}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, &oidc.Config{})
			c, err := v.ValidateNewClient(ctx, &storage.Client{
				GrantTypes:              tt.grantTypes,
				Scope:                   tt.scope,
				TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodNone,
			})
			if err != nil {
				t.Fatalf("ValidateNewClient() failed: %v", err)
			}
			if !util.Contains(c.GrantTypes, oidc.GrantTypeRefreshToken) {
				t.Errorf("grant types = %v, want refresh_token present", c.GrantTypes)
			}
			if !util.Contains(c.Scope, oidc.ScopeOfflineAccess) {
				t.Errorf("scope = %v, want offline_access present", c.Scope)
			}
		})
	}
}

func TestKeyConsistency(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		jwks     string
		jwksURI  string
		method   string
		wantFail bool
	}{
		{"jwks and jwks_uri together rejected", validJWKS, "https://keys.example.com/jwks", oidc.TokenEndpointAuthMethodNone, true},
		{"inline jwks must parse", `{"keys": "nope"}`, "", oidc.TokenEndpointAuthMethodNone, true},
		{"valid inline jwks accepted", validJWKS, "", oidc.TokenEndpointAuthMethodNone, false},
		{"jwks_uri alone accepted", "", "https://keys.example.com/jwks", oidc.TokenEndpointAuthMethodNone, false},
		{"private_key_jwt without any key rejected", "", "", oidc.TokenEndpointAuthMethodPrivateKey, true},
		{"both absent legal without key-based auth", "", "", oidc.TokenEndpointAuthMethodBasic, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, &oidc.Config{})
			client := &storage.Client{
				GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
				Scope:                   []string{"openid"},
				TokenEndpointAuthMethod: tt.method,
				JWKSURI:                 tt.jwksURI,
			}
			if tt.jwks != "" {
				client.JWKS = json.RawMessage(tt.jwks)
			}

			_, err := v.ValidateNewClient(ctx, client)
			if tt.wantFail {
				if oidc.CodeOf(err) != oidc.ErrorCodeInvalidClientMetadata {
					t.Fatalf("expected invalid_client_metadata, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("ValidateNewClient() failed: %v", err)
			}
		})
	}
}

func TestReservedScopeStripping(t *testing.T) {
	ctx := context.Background()
	v := newTestValidator(t, &oidc.Config{})

	c, err := v.ValidateNewClient(ctx, &storage.Client{
		GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
		Scope:                   []string{"openid", oidc.ScopeRegistrationToken, oidc.ScopeResourceToken},
		TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodNone,
	})
	if err != nil {
		t.Fatalf("ValidateNewClient() failed: %v", err)
	}
	for _, s := range c.Scope {
		if s == oidc.ScopeRegistrationToken || s == oidc.ScopeResourceToken {
			t.Errorf("reserved scope %q survived registration", s)
		}
	}
	if !util.Contains(c.Scope, "openid") {
		t.Errorf("scope = %v, want openid kept", c.Scope)
	}
}

func TestHeartMode(t *testing.T) {
	ctx := context.Background()
	heartCfg := &oidc.Config{HeartMode: true}

	base := func() *storage.Client {
		return &storage.Client{
			GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
			Scope:                   []string{"openid"},
			RedirectURIs:            []string{"https://app.example.com/cb"},
			TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodPrivateKey,
			JWKSURI:                 "https://keys.example.com/jwks",
		}
	}

	t.Run("compliant authorization_code client is accepted without a secret", func(t *testing.T) {
		v := newTestValidator(t, heartCfg)
		c, err := v.ValidateNewClient(ctx, base())
		if err != nil {
			t.Fatalf("ValidateNewClient() failed: %v", err)
		}
		if c.Secret != "" {
			t.Error("HEART client was given a secret")
		}
	})

	t.Run("violations", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*storage.Client)
		}{
			{"two primary grant types", func(c *storage.Client) {
				c.GrantTypes = []string{oidc.GrantTypeAuthorizationCode, oidc.GrantTypeImplicit}
			}},
			{"no primary grant type", func(c *storage.Client) {
				c.GrantTypes = []string{oidc.GrantTypeRefreshToken}
			}},
			{"password grant", func(c *storage.Client) {
				c.GrantTypes = []string{oidc.GrantTypePassword}
			}},
			{"refresh without authorization_code", func(c *storage.Client) {
				c.GrantTypes = []string{oidc.GrantTypeImplicit, oidc.GrantTypeRefreshToken}
				c.TokenEndpointAuthMethod = oidc.TokenEndpointAuthMethodNone
			}},
			{"wrong auth method for authorization_code", func(c *storage.Client) {
				c.TokenEndpointAuthMethod = oidc.TokenEndpointAuthMethodBasic
			}},
			{"implicit must use auth method none", func(c *storage.Client) {
				c.GrantTypes = []string{oidc.GrantTypeImplicit}
			}},
			{"client secret set", func(c *storage.Client) {
				c.Secret = "sneaky"
			}},
			{"no key material", func(c *storage.Client) {
				c.JWKSURI = ""
			}},
			{"no redirect URI for redirect grant", func(c *storage.Client) {
				c.RedirectURIs = nil
			}},
			{"redirect URI on client_credentials", func(c *storage.Client) {
				c.GrantTypes = []string{oidc.GrantTypeClientCredentials}
			}},
			{"mixed redirect URI classes", func(c *storage.Client) {
				c.RedirectURIs = []string{"https://app.example.com/cb", "http://localhost:8080/cb"}
			}},
			{"http redirect on a remote host", func(c *storage.Client) {
				c.RedirectURIs = []string{"http://app.example.com/cb"}
			}},
			{"https redirect on loopback", func(c *storage.Client) {
				c.RedirectURIs = []string{"https://localhost/cb"}
			}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				v := newTestValidator(t, heartCfg)
				client := base()
				tt.mutate(client)
				_, err := v.ValidateNewClient(ctx, client)
				if oidc.CodeOf(err) != oidc.ErrorCodeInvalidClientMetadata {
					t.Fatalf("expected invalid_client_metadata, got %v", err)
				}
			})
		}
	})

	t.Run("homogeneous classes are accepted", func(t *testing.T) {
		tests := []struct {
			name string
			uris []string
		}{
			{"loopback http", []string{"http://localhost:8080/cb", "http://127.0.0.1/cb"}},
			{"remote https", []string{"https://a.example.com/cb", "https://b.example.com/cb"}},
			{"custom scheme", []string{"com.example.app:/cb", "com.example.app:/alt"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				v := newTestValidator(t, heartCfg)
				client := base()
				client.RedirectURIs = tt.uris
				if _, err := v.ValidateNewClient(ctx, client); err != nil {
					t.Fatalf("ValidateNewClient() failed: %v", err)
				}
			})
		}
	})
}

func TestValidateUpdatedClient(t *testing.T) {
	ctx := context.Background()
	v := newTestValidator(t, &oidc.Config{})

	old := testutil.NewClient("stable-id")
	old.ID = 42

	c, err := v.ValidateUpdatedClient(ctx, &storage.Client{
		ClientID:                "attempted-rename",
		GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
		Scope:                   []string{"openid"},
		TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodNone,
	}, old)
	if err != nil {
		t.Fatalf("ValidateUpdatedClient() failed: %v", err)
	}
	if c.ID != 42 || c.ClientID != "stable-id" {
		t.Errorf("identity changed on update: id=%d client_id=%q", c.ID, c.ClientID)
	}
	if !c.CreatedAt.Equal(old.CreatedAt) {
		t.Error("creation time changed on update")
	}
}
