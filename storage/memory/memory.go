// Package memory provides an in-memory implementation of all storage
// interfaces. It is suitable for development, testing, and single-instance
// deployments.
package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/instrumentation"
	"github.com/lumonhealth/oidc-core/internal/util"
	"github.com/lumonhealth/oidc-core/storage"
)

// Store is an in-memory implementation of every storage interface the engine
// consumes. All operations are guarded by a single RWMutex, which gives the
// atomicity the contracts require (one-time code consumption, consistent
// cascades) within a single process.
type Store struct {
	mu sync.RWMutex

	nextID int64

	clients map[string]*storage.Client // client_id -> client

	holders map[int64]*storage.AuthenticationHolder

	accessTokens     map[string]*storage.AccessToken // value -> token
	accessTokensByID map[int64]*storage.AccessToken

	refreshTokens     map[string]*storage.RefreshToken // value -> token
	refreshTokensByID map[int64]*storage.RefreshToken

	authCodes map[string]*storage.AuthorizationCode // code -> record

	deviceCodesByID map[int64]*storage.DeviceCode
	byDeviceCode    map[string]*storage.DeviceCode
	byUserCode      map[string]*storage.DeviceCode

	scopes map[string]*storage.SystemScope // value -> scope

	clock  oidc.Clock
	logger *slog.Logger
}

// Compile-time interface check
var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store using the system clock
func New() *Store {
	return NewWithClock(oidc.SystemClock{})
}

// NewWithClock creates a new in-memory store with an injected time source.
// Tests use a mock clock to drive expiry queries deterministically.
func NewWithClock(clock oidc.Clock) *Store {
	if clock == nil {
		clock = oidc.SystemClock{}
	}
	return &Store{
		clients:           make(map[string]*storage.Client),
		holders:           make(map[int64]*storage.AuthenticationHolder),
		accessTokens:      make(map[string]*storage.AccessToken),
		accessTokensByID:  make(map[int64]*storage.AccessToken),
		refreshTokens:     make(map[string]*storage.RefreshToken),
		refreshTokensByID: make(map[int64]*storage.RefreshToken),
		authCodes:         make(map[string]*storage.AuthorizationCode),
		deviceCodesByID:   make(map[int64]*storage.DeviceCode),
		byDeviceCode:      make(map[string]*storage.DeviceCode),
		byUserCode:        make(map[string]*storage.DeviceCode),
		scopes:            make(map[string]*storage.SystemScope),
		clock:             clock,
		logger:            slog.Default(),
	}
}

// SetLogger replaces the store's logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetInstrumentation registers storage size gauges with the given
// instrumentation instance.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) error {
	return inst.RegisterStorageSizeCallbacks(
		func() int64 { s.mu.RLock(); defer s.mu.RUnlock(); return int64(len(s.accessTokens)) },
		func() int64 { s.mu.RLock(); defer s.mu.RUnlock(); return int64(len(s.refreshTokens)) },
		func() int64 { s.mu.RLock(); defer s.mu.RUnlock(); return int64(len(s.clients)) },
		func() int64 { s.mu.RLock(); defer s.mu.RUnlock(); return int64(len(s.authCodes)) },
		func() int64 { s.mu.RLock(); defer s.mu.RUnlock(); return int64(len(s.deviceCodesByID)) },
	)
}

// allocID assigns the next internal ID. Caller holds the write lock.
func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

// ---- ClientStore ----

// SaveClient persists a new client and assigns its internal ID
func (s *Store) SaveClient(_ context.Context, client *storage.Client) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneClient(client)
	if c.ID == 0 {
		c.ID = s.allocID()
	}
	s.clients[c.ClientID] = c
	return cloneClient(c), nil
}

// GetClientByClientID retrieves a client by its public client_id
func (s *Store) GetClientByClientID(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneClient(c), nil
}

// UpdateClient replaces the stored client, preserving its internal ID
func (s *Store) UpdateClient(_ context.Context, client *storage.Client) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.clients[client.ClientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := cloneClient(client)
	c.ID = old.ID
	s.clients[c.ClientID] = c
	return cloneClient(c), nil
}

// DeleteClient removes a client and cascades to its tokens, authorization
// codes, and device codes.
func (s *Store) DeleteClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[clientID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.clients, clientID)

	for value, t := range s.accessTokens {
		if t.ClientID == clientID {
			delete(s.accessTokens, value)
			delete(s.accessTokensByID, t.ID)
		}
	}
	for value, t := range s.refreshTokens {
		if t.ClientID == clientID {
			delete(s.refreshTokens, value)
			delete(s.refreshTokensByID, t.ID)
		}
	}
	for id, dc := range s.deviceCodesByID {
		if dc.ClientID == clientID {
			delete(s.deviceCodesByID, id)
			delete(s.byDeviceCode, dc.DeviceCode)
			delete(s.byUserCode, dc.UserCode)
		}
	}
	// Authorization codes are owned through their holder's client id
	for code, ac := range s.authCodes {
		if h, ok := s.holders[ac.AuthHolderID]; ok && h.Authentication.ClientID == clientID {
			delete(s.authCodes, code)
		}
	}
	return nil
}

// ListClients lists all registered clients
func (s *Store) ListClients(_ context.Context) ([]*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, cloneClient(c))
	}
	return out, nil
}

// ---- AuthenticationHolderStore ----

// SaveAuthenticationHolder persists a snapshot and assigns its ID
func (s *Store) SaveAuthenticationHolder(_ context.Context, holder *storage.AuthenticationHolder) (*storage.AuthenticationHolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := cloneHolder(holder)
	if h.ID == 0 {
		h.ID = s.allocID()
	}
	s.holders[h.ID] = h
	return cloneHolder(h), nil
}

// GetAuthenticationHolder retrieves a snapshot by ID
func (s *Store) GetAuthenticationHolder(_ context.Context, id int64) (*storage.AuthenticationHolder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneHolder(h), nil
}

// DeleteAuthenticationHolder removes a snapshot
func (s *Store) DeleteAuthenticationHolder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holders[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.holders, id)
	return nil
}

// GetOrphanedAuthenticationHolders returns holders no longer referenced by
// any live token, authorization code, or device code.
func (s *Store) GetOrphanedAuthenticationHolders(_ context.Context, limit int) ([]*storage.AuthenticationHolder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	referenced := make(map[int64]struct{})
	for _, t := range s.accessTokens {
		referenced[t.AuthHolderID] = struct{}{}
	}
	for _, t := range s.refreshTokens {
		referenced[t.AuthHolderID] = struct{}{}
	}
	for _, c := range s.authCodes {
		referenced[c.AuthHolderID] = struct{}{}
	}
	for _, d := range s.deviceCodesByID {
		if d.AuthHolderID != 0 {
			referenced[d.AuthHolderID] = struct{}{}
		}
	}

	out := make([]*storage.AuthenticationHolder, 0, limit)
	for id, h := range s.holders {
		if _, ok := referenced[id]; ok {
			continue
		}
		out = append(out, cloneHolder(h))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---- TokenStore ----

// SaveAccessToken persists a token and assigns its internal ID
func (s *Store) SaveAccessToken(_ context.Context, token *storage.AccessToken) (*storage.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := cloneAccessToken(token)
	if t.ID == 0 {
		t.ID = s.allocID()
	} else if old, ok := s.accessTokensByID[t.ID]; ok && old.Value != t.Value {
		delete(s.accessTokens, old.Value)
	}
	s.accessTokens[t.Value] = t
	s.accessTokensByID[t.ID] = t
	return cloneAccessToken(t), nil
}

// GetAccessTokenByValue retrieves a token by its opaque bearer value
func (s *Store) GetAccessTokenByValue(_ context.Context, value string) (*storage.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.accessTokens[value]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneAccessToken(t), nil
}

// DeleteAccessToken removes an access token
func (s *Store) DeleteAccessToken(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.accessTokensByID[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.accessTokensByID, id)
	delete(s.accessTokens, t.Value)
	return nil
}

// GetAccessTokensForClient returns all access tokens owned by a client
func (s *Store) GetAccessTokensForClient(_ context.Context, clientID string) ([]*storage.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.AccessToken
	for _, t := range s.accessTokens {
		if t.ClientID == clientID {
			out = append(out, cloneAccessToken(t))
		}
	}
	return out, nil
}

// GetAccessTokensForRefreshToken returns the access tokens chained to a
// refresh token.
func (s *Store) GetAccessTokensForRefreshToken(_ context.Context, refreshTokenID int64) ([]*storage.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.AccessToken
	for _, t := range s.accessTokens {
		if t.RefreshTokenID == refreshTokenID {
			out = append(out, cloneAccessToken(t))
		}
	}
	return out, nil
}

// GetAccessTokensForPrincipal returns all access tokens whose owning
// authentication names the given principal.
func (s *Store) GetAccessTokensForPrincipal(_ context.Context, principal string) ([]*storage.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.AccessToken
	for _, t := range s.accessTokens {
		h, ok := s.holders[t.AuthHolderID]
		if ok && h.Authentication.Principal == principal {
			out = append(out, cloneAccessToken(t))
		}
	}
	return out, nil
}

// GetExpiredAccessTokens returns up to limit expired access tokens
func (s *Store) GetExpiredAccessTokens(_ context.Context, limit int) ([]*storage.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	out := make([]*storage.AccessToken, 0, limit)
	for _, t := range s.accessTokens {
		if t.IsExpired(now) {
			out = append(out, cloneAccessToken(t))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// SaveRefreshToken persists a refresh token and assigns its internal ID
func (s *Store) SaveRefreshToken(_ context.Context, token *storage.RefreshToken) (*storage.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := cloneRefreshToken(token)
	if t.ID == 0 {
		t.ID = s.allocID()
	}
	s.refreshTokens[t.Value] = t
	s.refreshTokensByID[t.ID] = t
	return cloneRefreshToken(t), nil
}

// GetRefreshTokenByValue retrieves a refresh token by its opaque value
func (s *Store) GetRefreshTokenByValue(_ context.Context, value string) (*storage.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.refreshTokens[value]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRefreshToken(t), nil
}

// GetRefreshTokenByID retrieves a refresh token by internal ID
func (s *Store) GetRefreshTokenByID(_ context.Context, id int64) (*storage.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.refreshTokensByID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRefreshToken(t), nil
}

// DeleteRefreshToken removes a refresh token
func (s *Store) DeleteRefreshToken(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.refreshTokensByID[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.refreshTokensByID, id)
	delete(s.refreshTokens, t.Value)
	return nil
}

// GetExpiredRefreshTokens returns up to limit expired refresh tokens
func (s *Store) GetExpiredRefreshTokens(_ context.Context, limit int) ([]*storage.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	out := make([]*storage.RefreshToken, 0, limit)
	for _, t := range s.refreshTokens {
		if t.IsExpired(now) {
			out = append(out, cloneRefreshToken(t))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ---- AuthorizationCodeStore ----

// SaveAuthorizationCode persists a code and assigns its internal ID
func (s *Store) SaveAuthorizationCode(_ context.Context, code *storage.AuthorizationCode) (*storage.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneAuthCode(code)
	if c.ID == 0 {
		c.ID = s.allocID()
	}
	s.authCodes[c.Code] = c
	return cloneAuthCode(c), nil
}

// ConsumeAuthorizationCode atomically fetches and deletes the record for the
// given code value. The write lock makes the fetch-and-delete atomic: two
// concurrent consumptions cannot both succeed.
func (s *Store) ConsumeAuthorizationCode(_ context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(s.authCodes, code)
	return cloneAuthCode(c), nil
}

// DeleteAuthorizationCode removes a code without consuming it
func (s *Store) DeleteAuthorizationCode(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for code, c := range s.authCodes {
		if c.ID == id {
			delete(s.authCodes, code)
			return nil
		}
	}
	return storage.ErrNotFound
}

// GetExpiredAuthorizationCodes returns up to limit expired codes
func (s *Store) GetExpiredAuthorizationCodes(_ context.Context, limit int) ([]*storage.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	out := make([]*storage.AuthorizationCode, 0, limit)
	for _, c := range s.authCodes {
		if now.After(c.Expiration) {
			out = append(out, cloneAuthCode(c))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ---- DeviceCodeStore ----

// SaveDeviceCode persists a device code and assigns its internal ID.
// The user code is indexed upper-cased.
func (s *Store) SaveDeviceCode(_ context.Context, dc *storage.DeviceCode) (*storage.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := cloneDeviceCode(dc)
	if d.ID == 0 {
		d.ID = s.allocID()
	}
	d.UserCode = strings.ToUpper(d.UserCode)
	s.deviceCodesByID[d.ID] = d
	s.byDeviceCode[d.DeviceCode] = d
	s.byUserCode[d.UserCode] = d
	return cloneDeviceCode(d), nil
}

// GetDeviceCodeByID retrieves a device code by internal ID
func (s *Store) GetDeviceCodeByID(_ context.Context, id int64) (*storage.DeviceCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deviceCodesByID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneDeviceCode(d), nil
}

// GetByDeviceCode retrieves a device code by its device_code value
func (s *Store) GetByDeviceCode(_ context.Context, deviceCode string) (*storage.DeviceCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byDeviceCode[deviceCode]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneDeviceCode(d), nil
}

// GetByUserCode retrieves a device code by its user_code. Lookups are
// performed against the upper-cased index; callers normalize input.
func (s *Store) GetByUserCode(_ context.Context, userCode string) (*storage.DeviceCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byUserCode[userCode]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneDeviceCode(d), nil
}

// UpdateDeviceCode replaces the stored record, preserving its internal ID
func (s *Store) UpdateDeviceCode(_ context.Context, dc *storage.DeviceCode) (*storage.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.deviceCodesByID[dc.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	d := cloneDeviceCode(dc)
	d.UserCode = strings.ToUpper(d.UserCode)
	delete(s.byDeviceCode, old.DeviceCode)
	delete(s.byUserCode, old.UserCode)
	s.deviceCodesByID[d.ID] = d
	s.byDeviceCode[d.DeviceCode] = d
	s.byUserCode[d.UserCode] = d
	return cloneDeviceCode(d), nil
}

// DeleteDeviceCode removes a device code
func (s *Store) DeleteDeviceCode(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deviceCodesByID[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.deviceCodesByID, id)
	delete(s.byDeviceCode, d.DeviceCode)
	delete(s.byUserCode, d.UserCode)
	return nil
}

// GetExpiredDeviceCodes returns up to limit expired device codes
func (s *Store) GetExpiredDeviceCodes(_ context.Context, limit int) ([]*storage.DeviceCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	out := make([]*storage.DeviceCode, 0, limit)
	for _, d := range s.deviceCodesByID {
		if d.IsExpired(now) {
			out = append(out, cloneDeviceCode(d))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ---- SystemScopeStore ----

// SaveSystemScope persists a scope and assigns its internal ID
func (s *Store) SaveSystemScope(_ context.Context, scope *storage.SystemScope) (*storage.SystemScope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := *scope
	if sc.ID == 0 {
		sc.ID = s.allocID()
	}
	s.scopes[sc.Value] = &sc
	out := sc
	return &out, nil
}

// GetSystemScopeByValue retrieves a scope by value
func (s *Store) GetSystemScopeByValue(_ context.Context, value string) (*storage.SystemScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scopes[value]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *sc
	return &out, nil
}

// GetAllSystemScopes returns every registered scope
func (s *Store) GetAllSystemScopes(_ context.Context) ([]*storage.SystemScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.SystemScope, 0, len(s.scopes))
	for _, sc := range s.scopes {
		c := *sc
		out = append(out, &c)
	}
	return out, nil
}

// DeleteSystemScope removes a scope
func (s *Store) DeleteSystemScope(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scopes[value]; !ok {
		return storage.ErrNotFound
	}
	delete(s.scopes, value)
	return nil
}

// ---- clone helpers ----
// Stored records are cloned on the way in and out so callers never share
// memory with the store's internal state.

func cloneClient(c *storage.Client) *storage.Client {
	out := *c
	out.GrantTypes = util.CopySet(c.GrantTypes)
	out.Scope = util.CopySet(c.Scope)
	out.RedirectURIs = util.CopySet(c.RedirectURIs)
	out.AccessTokenValiditySeconds = cloneInt64(c.AccessTokenValiditySeconds)
	out.RefreshTokenValiditySeconds = cloneInt64(c.RefreshTokenValiditySeconds)
	out.DeviceCodeValiditySeconds = cloneInt64(c.DeviceCodeValiditySeconds)
	if c.JWKS != nil {
		out.JWKS = append([]byte(nil), c.JWKS...)
	}
	return &out
}

func cloneHolder(h *storage.AuthenticationHolder) *storage.AuthenticationHolder {
	out := *h
	out.Authentication = cloneAuthentication(h.Authentication)
	return &out
}

func cloneAuthentication(a storage.AuthenticationContext) storage.AuthenticationContext {
	out := a
	out.Authorities = util.CopySet(a.Authorities)
	out.Scope = util.CopySet(a.Scope)
	if a.Extensions != nil {
		out.Extensions = make(map[string]string, len(a.Extensions))
		for k, v := range a.Extensions {
			out.Extensions[k] = v
		}
	}
	return out
}

func cloneAccessToken(t *storage.AccessToken) *storage.AccessToken {
	out := *t
	out.Scope = util.CopySet(t.Scope)
	out.Expiration = cloneTime(t.Expiration)
	if t.Permissions != nil {
		out.Permissions = make([]storage.Permission, len(t.Permissions))
		for i, p := range t.Permissions {
			out.Permissions[i] = storage.Permission{
				ResourceSetID: p.ResourceSetID,
				Scopes:        util.CopySet(p.Scopes),
			}
		}
	}
	return &out
}

func cloneRefreshToken(t *storage.RefreshToken) *storage.RefreshToken {
	out := *t
	out.Expiration = cloneTime(t.Expiration)
	return &out
}

func cloneAuthCode(c *storage.AuthorizationCode) *storage.AuthorizationCode {
	out := *c
	return &out
}

func cloneDeviceCode(d *storage.DeviceCode) *storage.DeviceCode {
	out := *d
	out.Scope = util.CopySet(d.Scope)
	out.Expiration = cloneTime(d.Expiration)
	if d.Params != nil {
		out.Params = make(map[string]string, len(d.Params))
		for k, v := range d.Params {
			out.Params[k] = v
		}
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
