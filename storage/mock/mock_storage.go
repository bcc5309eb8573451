// Package mock provides a storage test double: a real in-memory store with
// per-method override hooks for error injection and call counting.
package mock

import (
	"context"
	"sync"

	"github.com/lumonhealth/oidc-core/storage"
	"github.com/lumonhealth/oidc-core/storage/memory"
)

// Store wraps the in-memory store. Behavior is real unless a Func field is
// set, in which case the override runs instead; CallCounts tracks invocations
// either way.
type Store struct {
	*memory.Store

	mu         sync.Mutex
	CallCounts map[string]int

	DeleteAccessTokenFunc           func(ctx context.Context, id int64) error
	DeleteRefreshTokenFunc          func(ctx context.Context, id int64) error
	DeleteAuthorizationCodeFunc     func(ctx context.Context, id int64) error
	DeleteDeviceCodeFunc            func(ctx context.Context, id int64) error
	DeleteAuthenticationHolderFunc  func(ctx context.Context, id int64) error
	GetExpiredAccessTokensFunc      func(ctx context.Context, limit int) ([]*storage.AccessToken, error)
	GetExpiredRefreshTokensFunc     func(ctx context.Context, limit int) ([]*storage.RefreshToken, error)
	SaveAccessTokenFunc             func(ctx context.Context, token *storage.AccessToken) (*storage.AccessToken, error)
	SaveRefreshTokenFunc            func(ctx context.Context, token *storage.RefreshToken) (*storage.RefreshToken, error)
	SaveAuthenticationHolderFunc    func(ctx context.Context, holder *storage.AuthenticationHolder) (*storage.AuthenticationHolder, error)
	ConsumeAuthorizationCodeFunc    func(ctx context.Context, code string) (*storage.AuthorizationCode, error)
	GetClientByClientIDFunc         func(ctx context.Context, clientID string) (*storage.Client, error)
	GetExpiredAuthorizationCodeFunc func(ctx context.Context, limit int) ([]*storage.AuthorizationCode, error)
}

// New creates a mock store backed by a fresh in-memory store
func New() *Store {
	return &Store{
		Store:      memory.New(),
		CallCounts: make(map[string]int),
	}
}

// NewBacked creates a mock store delegating to the given in-memory store,
// typically one built with memory.NewWithClock.
func NewBacked(backing *memory.Store) *Store {
	return &Store{
		Store:      backing,
		CallCounts: make(map[string]int),
	}
}

func (m *Store) count(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// Calls returns how many times the named method was invoked
func (m *Store) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[method]
}

func (m *Store) DeleteAccessToken(ctx context.Context, id int64) error {
	m.count("DeleteAccessToken")
	if m.DeleteAccessTokenFunc != nil {
		return m.DeleteAccessTokenFunc(ctx, id)
	}
	return m.Store.DeleteAccessToken(ctx, id)
}

func (m *Store) DeleteRefreshToken(ctx context.Context, id int64) error {
	m.count("DeleteRefreshToken")
	if m.DeleteRefreshTokenFunc != nil {
		return m.DeleteRefreshTokenFunc(ctx, id)
	}
	return m.Store.DeleteRefreshToken(ctx, id)
}

func (m *Store) DeleteAuthorizationCode(ctx context.Context, id int64) error {
	m.count("DeleteAuthorizationCode")
	if m.DeleteAuthorizationCodeFunc != nil {
		return m.DeleteAuthorizationCodeFunc(ctx, id)
	}
	return m.Store.DeleteAuthorizationCode(ctx, id)
}

func (m *Store) DeleteDeviceCode(ctx context.Context, id int64) error {
	m.count("DeleteDeviceCode")
	if m.DeleteDeviceCodeFunc != nil {
		return m.DeleteDeviceCodeFunc(ctx, id)
	}
	return m.Store.DeleteDeviceCode(ctx, id)
}

func (m *Store) DeleteAuthenticationHolder(ctx context.Context, id int64) error {
	m.count("DeleteAuthenticationHolder")
	if m.DeleteAuthenticationHolderFunc != nil {
		return m.DeleteAuthenticationHolderFunc(ctx, id)
	}
	return m.Store.DeleteAuthenticationHolder(ctx, id)
}

func (m *Store) GetExpiredAccessTokens(ctx context.Context, limit int) ([]*storage.AccessToken, error) {
	m.count("GetExpiredAccessTokens")
	if m.GetExpiredAccessTokensFunc != nil {
		return m.GetExpiredAccessTokensFunc(ctx, limit)
	}
	return m.Store.GetExpiredAccessTokens(ctx, limit)
}

func (m *Store) GetExpiredRefreshTokens(ctx context.Context, limit int) ([]*storage.RefreshToken, error) {
	m.count("GetExpiredRefreshTokens")
	if m.GetExpiredRefreshTokensFunc != nil {
		return m.GetExpiredRefreshTokensFunc(ctx, limit)
	}
	return m.Store.GetExpiredRefreshTokens(ctx, limit)
}

func (m *Store) GetExpiredAuthorizationCodes(ctx context.Context, limit int) ([]*storage.AuthorizationCode, error) {
	m.count("GetExpiredAuthorizationCodes")
	if m.GetExpiredAuthorizationCodeFunc != nil {
		return m.GetExpiredAuthorizationCodeFunc(ctx, limit)
	}
	return m.Store.GetExpiredAuthorizationCodes(ctx, limit)
}

func (m *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) (*storage.AccessToken, error) {
	m.count("SaveAccessToken")
	if m.SaveAccessTokenFunc != nil {
		return m.SaveAccessTokenFunc(ctx, token)
	}
	return m.Store.SaveAccessToken(ctx, token)
}

func (m *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) (*storage.RefreshToken, error) {
	m.count("SaveRefreshToken")
	if m.SaveRefreshTokenFunc != nil {
		return m.SaveRefreshTokenFunc(ctx, token)
	}
	return m.Store.SaveRefreshToken(ctx, token)
}

func (m *Store) SaveAuthenticationHolder(ctx context.Context, holder *storage.AuthenticationHolder) (*storage.AuthenticationHolder, error) {
	m.count("SaveAuthenticationHolder")
	if m.SaveAuthenticationHolderFunc != nil {
		return m.SaveAuthenticationHolderFunc(ctx, holder)
	}
	return m.Store.SaveAuthenticationHolder(ctx, holder)
}

func (m *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	m.count("ConsumeAuthorizationCode")
	if m.ConsumeAuthorizationCodeFunc != nil {
		return m.ConsumeAuthorizationCodeFunc(ctx, code)
	}
	return m.Store.ConsumeAuthorizationCode(ctx, code)
}

func (m *Store) GetClientByClientID(ctx context.Context, clientID string) (*storage.Client, error) {
	m.count("GetClientByClientID")
	if m.GetClientByClientIDFunc != nil {
		return m.GetClientByClientIDFunc(ctx, clientID)
	}
	return m.Store.GetClientByClientID(ctx, clientID)
}

var _ storage.Store = (*Store)(nil)
