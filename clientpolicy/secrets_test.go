package clientpolicy

import (
	"context"
	"testing"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/storage"
)

func TestVerifyClientSecret(t *testing.T) {
	hash, err := HashClientSecret("correct-horse")
	if err != nil {
		t.Fatalf("HashClientSecret: %v", err)
	}
	confidential := &storage.Client{
		ClientID:                "conf",
		SecretHash:              hash,
		TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodBasic,
	}

	if err := VerifyClientSecret(confidential, "correct-horse"); err != nil {
		t.Errorf("valid secret rejected: %v", err)
	}
	if err := VerifyClientSecret(confidential, "battery-staple"); err == nil {
		t.Error("wrong secret accepted")
	}
	if err := VerifyClientSecret(nil, "correct-horse"); err == nil {
		t.Error("nil client accepted")
	}

	noHash := &storage.Client{
		ClientID:                "broken",
		TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodBasic,
	}
	if err := VerifyClientSecret(noHash, ""); err == nil {
		t.Error("confidential client without stored hash accepted")
	}

	public := &storage.Client{
		ClientID:                "pub",
		TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodNone,
	}
	if err := VerifyClientSecret(public, ""); err != nil {
		t.Errorf("public client rejected: %v", err)
	}
}

func TestRegistrationHashesGeneratedSecret(t *testing.T) {
	v := newTestValidator(t, &oidc.Config{})
	got, err := v.ValidateNewClient(context.Background(), &storage.Client{
		ClientName:              "hashing",
		GrantTypes:              []string{oidc.GrantTypeAuthorizationCode},
		Scope:                   []string{"openid"},
		TokenEndpointAuthMethod: oidc.TokenEndpointAuthMethodBasic,
		RedirectURIs:            []string{"https://rp.example.com/cb"},
	})
	if err != nil {
		t.Fatalf("ValidateNewClient: %v", err)
	}
	if got.Secret == "" || got.SecretHash == "" {
		t.Fatalf("expected secret and hash, got %q / %q", got.Secret, got.SecretHash)
	}
	if err := VerifyClientSecret(got, got.Secret); err != nil {
		t.Errorf("generated secret does not verify against its hash: %v", err)
	}
}
