package oidc

import (
	"net/http"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	t.Run("fills unset fields", func(t *testing.T) {
		cfg := (&Config{}).ApplyDefaults(nil)

		if cfg.AuthorizationCodeTTL != DefaultAuthorizationCodeTTL {
			t.Errorf("AuthorizationCodeTTL = %v", cfg.AuthorizationCodeTTL)
		}
		if cfg.SweepPageSize != DefaultSweepPageSize {
			t.Errorf("SweepPageSize = %d", cfg.SweepPageSize)
		}
		if cfg.SectorCacheTTL != DefaultSectorCacheTTL {
			t.Errorf("SectorCacheTTL = %v", cfg.SectorCacheTTL)
		}
		if cfg.SectorCacheMaxEntries != DefaultSectorCacheMaxEntries {
			t.Errorf("SectorCacheMaxEntries = %d", cfg.SectorCacheMaxEntries)
		}
		if cfg.HTTPClient == nil || cfg.HTTPClient.Timeout != DefaultHTTPTimeout {
			t.Error("HTTPClient default not applied")
		}
	})

	t.Run("does not override configured values", func(t *testing.T) {
		client := &http.Client{Timeout: time.Second}
		in := &Config{
			AuthorizationCodeTTL: time.Minute,
			SweepPageSize:        7,
			HTTPClient:           client,
		}
		cfg := in.ApplyDefaults(nil)

		if cfg.AuthorizationCodeTTL != time.Minute || cfg.SweepPageSize != 7 || cfg.HTTPClient != client {
			t.Error("configured values were overridden")
		}
	})

	t.Run("returns a copy", func(t *testing.T) {
		in := &Config{}
		out := in.ApplyDefaults(nil)
		if in == out {
			t.Error("ApplyDefaults returned the original")
		}
		if in.SweepPageSize != 0 {
			t.Error("original config was mutated")
		}
	})
}

func TestReserved(t *testing.T) {
	cfg := &Config{ReservedScopes: []string{"internal-admin"}}
	got := cfg.Reserved()

	want := map[string]bool{
		ScopeRegistrationToken: true,
		ScopeResourceToken:     true,
		"internal-admin":       true,
	}
	if len(got) != len(want) {
		t.Fatalf("Reserved() = %v", got)
	}
	for _, v := range got {
		if !want[v] {
			t.Errorf("unexpected reserved scope %q", v)
		}
	}
}
