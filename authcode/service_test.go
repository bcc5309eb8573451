package authcode

import (
	"context"
	"errors"
	"testing"
	"time"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/internal/testutil"
	"github.com/lumonhealth/oidc-core/storage/memory"
	"github.com/lumonhealth/oidc-core/storage/mock"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *testutil.MockClock) {
	t.Helper()
	clock := testutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewWithClock(clock)
	svc, err := New(store, store, &oidc.Config{}, clock, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return svc, store, clock
}

func TestIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("nil authentication fails", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if _, err := svc.Issue(ctx, nil); oidc.CodeOf(err) != oidc.ErrorCodeCredentialsNotFound {
			t.Fatalf("expected credentials_not_found, got %v", err)
		}
	})

	t.Run("issues a long random code", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		code, err := svc.Issue(ctx, testutil.NewAuthentication("alice", "app", "openid"))
		if err != nil {
			t.Fatalf("Issue() failed: %v", err)
		}
		if len(code) < 20 {
			t.Errorf("code length = %d, want at least 20", len(code))
		}
		other, err := svc.Issue(ctx, testutil.NewAuthentication("alice", "app", "openid"))
		if err != nil {
			t.Fatalf("second Issue() failed: %v", err)
		}
		if code == other {
			t.Error("two issued codes collided")
		}
	})
}

func TestConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips the authentication context", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		auth := testutil.NewAuthentication("alice", "app", "openid", "profile")
		auth.Extensions["code_challenge"] = "stored-challenge"

		code, err := svc.Issue(ctx, auth)
		if err != nil {
			t.Fatalf("Issue() failed: %v", err)
		}
		got, err := svc.Consume(ctx, code)
		if err != nil {
			t.Fatalf("Consume() failed: %v", err)
		}
		if got.Principal != "alice" || got.ClientID != "app" {
			t.Errorf("consumed auth = %+v", got)
		}
		if got.Extensions["code_challenge"] != "stored-challenge" {
			t.Error("extension map was not preserved across issue/consume")
		}
	})

	t.Run("second consumption fails with invalid_grant", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		code, err := svc.Issue(ctx, testutil.NewAuthentication("alice", "app", "openid"))
		if err != nil {
			t.Fatalf("Issue() failed: %v", err)
		}
		if _, err := svc.Consume(ctx, code); err != nil {
			t.Fatalf("first Consume() failed: %v", err)
		}
		if _, err := svc.Consume(ctx, code); oidc.CodeOf(err) != oidc.ErrorCodeInvalidGrant {
			t.Fatalf("expected invalid_grant on second consumption, got %v", err)
		}
	})

	t.Run("unknown code fails with invalid_grant", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if _, err := svc.Consume(ctx, "never-issued"); oidc.CodeOf(err) != oidc.ErrorCodeInvalidGrant {
			t.Fatalf("expected invalid_grant, got %v", err)
		}
	})

	t.Run("expired but unswept code is still honored", func(t *testing.T) {
		svc, _, clock := newTestService(t)
		code, err := svc.Issue(ctx, testutil.NewAuthentication("alice", "app", "openid"))
		if err != nil {
			t.Fatalf("Issue() failed: %v", err)
		}
		clock.Advance(time.Hour)
		if _, err := svc.Consume(ctx, code); err != nil {
			t.Fatalf("Consume() after nominal TTL failed: %v", err)
		}
	})
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("removes only expired codes", func(t *testing.T) {
		svc, _, clock := newTestService(t)
		stale, err := svc.Issue(ctx, testutil.NewAuthentication("alice", "app", "openid"))
		if err != nil {
			t.Fatalf("Issue() failed: %v", err)
		}
		clock.Advance(10 * time.Minute)
		fresh, err := svc.Issue(ctx, testutil.NewAuthentication("bob", "app", "openid"))
		if err != nil {
			t.Fatalf("Issue() failed: %v", err)
		}

		if err := svc.SweepExpired(ctx); err != nil {
			t.Fatalf("SweepExpired() failed: %v", err)
		}
		if _, err := svc.Consume(ctx, stale); oidc.CodeOf(err) != oidc.ErrorCodeInvalidGrant {
			t.Error("stale code survived the sweep")
		}
		if _, err := svc.Consume(ctx, fresh); err != nil {
			t.Errorf("fresh code was swept: %v", err)
		}
	})

	t.Run("bails out when no deletion makes progress", func(t *testing.T) {
		clock := testutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		store := mock.NewBacked(memory.NewWithClock(clock))
		svc, err := New(store, store, &oidc.Config{}, clock, nil)
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		if _, err := svc.Issue(context.Background(), testutil.NewAuthentication("alice", "app", "openid")); err != nil {
			t.Fatalf("Issue() failed: %v", err)
		}
		clock.Advance(time.Hour)

		store.DeleteAuthorizationCodeFunc = func(ctx context.Context, id int64) error {
			return errors.New("backend unavailable")
		}
		if err := svc.SweepExpired(context.Background()); err != nil {
			t.Fatalf("SweepExpired() returned error: %v", err)
		}
		if got := store.Calls("GetExpiredAuthorizationCodes"); got != 1 {
			t.Errorf("GetExpiredAuthorizationCodes called %d times, want 1", got)
		}
	})
}
