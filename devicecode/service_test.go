package devicecode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/internal/testutil"
	"github.com/lumonhealth/oidc-core/storage"
	"github.com/lumonhealth/oidc-core/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *testutil.MockClock) {
	t.Helper()
	clock := testutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewWithClock(clock)
	svc, err := New(store, store, &oidc.Config{DeviceCodeTTL: 10 * time.Minute}, clock, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return svc, store, clock
}

func TestCreateNewDeviceCode(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	client := testutil.NewClient("tv-app")

	dc, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, client, map[string]string{"display": "popup"})
	if err != nil {
		t.Fatalf("CreateNewDeviceCode() failed: %v", err)
	}

	if dc.DeviceCode == "" {
		t.Error("device code is empty")
	}
	if len(dc.UserCode) != 8 {
		t.Errorf("user code length = %d, want 8", len(dc.UserCode))
	}
	if dc.UserCode != strings.ToUpper(dc.UserCode) {
		t.Errorf("user code %q is not stored upper-cased", dc.UserCode)
	}
	if dc.Approved {
		t.Error("new device code must start unapproved")
	}
	if dc.Params["display"] != "popup" {
		t.Error("request parameters were not preserved")
	}
	want := clock.Now().Add(10 * time.Minute)
	if dc.Expiration == nil || !dc.Expiration.Equal(want) {
		t.Errorf("expiration = %v, want %v", dc.Expiration, want)
	}
}

func TestCreateNewDeviceCodeValidity(t *testing.T) {
	ctx := context.Background()

	t.Run("client override wins", func(t *testing.T) {
		svc, _, clock := newTestService(t)
		client := testutil.NewClient("tv-app")
		short := int64(90)
		client.DeviceCodeValiditySeconds = &short

		dc, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, client, nil)
		if err != nil {
			t.Fatalf("CreateNewDeviceCode() failed: %v", err)
		}
		want := clock.Now().Add(90 * time.Second)
		if dc.Expiration == nil || !dc.Expiration.Equal(want) {
			t.Errorf("expiration = %v, want %v", dc.Expiration, want)
		}
	})

	t.Run("no TTL at all means never expires", func(t *testing.T) {
		clock := testutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		store := memory.NewWithClock(clock)
		svc, err := New(store, store, &oidc.Config{}, clock, nil)
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		dc, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, testutil.NewClient("tv-app"), nil)
		if err != nil {
			t.Fatalf("CreateNewDeviceCode() failed: %v", err)
		}
		if dc.Expiration != nil {
			t.Errorf("expiration = %v, want never", dc.Expiration)
		}
	})
}

func TestLookUpByUserCodeIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	dc, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, testutil.NewClient("tv-app"), nil)
	if err != nil {
		t.Fatalf("CreateNewDeviceCode() failed: %v", err)
	}

	found, err := svc.LookUpByUserCode(ctx, strings.ToLower(dc.UserCode))
	if err != nil {
		t.Fatalf("LookUpByUserCode() with lower-cased input failed: %v", err)
	}
	if found.ID != dc.ID {
		t.Errorf("found code %d, want %d", found.ID, dc.ID)
	}
}

func TestApproveDeviceCode(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	dc, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, testutil.NewClient("tv-app"), nil)
	if err != nil {
		t.Fatalf("CreateNewDeviceCode() failed: %v", err)
	}

	approved, err := svc.ApproveDeviceCode(ctx, dc, testutil.NewAuthentication("alice", "tv-app", "openid"))
	if err != nil {
		t.Fatalf("ApproveDeviceCode() failed: %v", err)
	}
	if !approved.Approved {
		t.Error("device code not marked approved")
	}
	if approved.AuthHolderID == 0 {
		t.Fatal("approval did not attach an authentication holder")
	}

	holder, err := store.GetAuthenticationHolder(ctx, approved.AuthHolderID)
	if err != nil {
		t.Fatalf("GetAuthenticationHolder() failed: %v", err)
	}
	if holder.Authentication.Principal != "alice" {
		t.Errorf("holder principal = %q, want alice", holder.Authentication.Principal)
	}
}

func TestFindDeviceCodeClientIsolation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	clientA := testutil.NewClient("client-a")
	clientB := testutil.NewClient("client-b")

	dc, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, clientA, nil)
	if err != nil {
		t.Fatalf("CreateNewDeviceCode() failed: %v", err)
	}

	if _, err := svc.FindDeviceCode(ctx, dc.DeviceCode, clientA); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if _, err := svc.FindDeviceCode(ctx, dc.DeviceCode, clientB); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("cross-client lookup must report not found, got %v", err)
	}
}

func TestClearDeviceCode(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	clientA := testutil.NewClient("client-a")
	clientB := testutil.NewClient("client-b")

	dc, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, clientA, nil)
	if err != nil {
		t.Fatalf("CreateNewDeviceCode() failed: %v", err)
	}

	// Another client cannot clear it; the owner's copy survives.
	if err := svc.ClearDeviceCode(ctx, dc.DeviceCode, clientB); err != nil {
		t.Fatalf("ClearDeviceCode() by non-owner returned error: %v", err)
	}
	if _, err := svc.FindDeviceCode(ctx, dc.DeviceCode, clientA); err != nil {
		t.Fatal("non-owner clear removed the code")
	}

	if err := svc.ClearDeviceCode(ctx, dc.DeviceCode, clientA); err != nil {
		t.Fatalf("ClearDeviceCode() failed: %v", err)
	}
	if _, err := svc.FindDeviceCode(ctx, dc.DeviceCode, clientA); !errors.Is(err, storage.ErrNotFound) {
		t.Error("code survived the owner's clear")
	}
}

func TestClearExpiredDeviceCodes(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	client := testutil.NewClient("tv-app")

	stale, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, client, nil)
	if err != nil {
		t.Fatalf("CreateNewDeviceCode() failed: %v", err)
	}
	clock.Advance(time.Hour)
	fresh, err := svc.CreateNewDeviceCode(ctx, []string{"openid"}, client, nil)
	if err != nil {
		t.Fatalf("CreateNewDeviceCode() failed: %v", err)
	}

	if err := svc.ClearExpiredDeviceCodes(ctx); err != nil {
		t.Fatalf("ClearExpiredDeviceCodes() failed: %v", err)
	}
	if _, err := svc.FindDeviceCode(ctx, stale.DeviceCode, client); !errors.Is(err, storage.ErrNotFound) {
		t.Error("expired device code survived the sweep")
	}
	if _, err := svc.FindDeviceCode(ctx, fresh.DeviceCode, client); err != nil {
		t.Errorf("fresh device code was swept: %v", err)
	}
}
