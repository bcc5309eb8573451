// Package scope implements the system scope registry: resolution of scope
// strings to scope records, subset matching, and reserved/restricted
// filtering.
package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/internal/util"
	"github.com/lumonhealth/oidc-core/storage"
)

// Registry maps scope identifiers to scope records and enforces the
// process-wide reserved scope set.
type Registry struct {
	store    storage.SystemScopeStore
	reserved map[string]struct{}
	logger   *slog.Logger
}

// New creates a scope registry. The reserved set is taken from the config and
// always includes the registration and resource token scopes.
func New(store storage.SystemScopeStore, cfg *oidc.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	reserved := make(map[string]struct{})
	for _, v := range cfg.Reserved() {
		reserved[v] = struct{}{}
	}
	return &Registry{
		store:    store,
		reserved: reserved,
		logger:   logger,
	}
}

// FromStrings resolves scope values to scope records. Unknown values become
// synthetic unregistered scope records rather than being dropped, so
// arbitrary client-requested scope strings still round-trip. A nil input
// yields nil, preserving the distinction between "no scope" and "empty
// scope".
func (r *Registry) FromStrings(ctx context.Context, values []string) ([]*storage.SystemScope, error) {
	if values == nil {
		return nil, nil
	}

	out := make([]*storage.SystemScope, 0, len(values))
	for _, v := range values {
		s, err := r.store.GetSystemScopeByValue(ctx, v)
		switch {
		case err == nil:
			out = append(out, s)
		case errors.Is(err, storage.ErrNotFound):
			out = append(out, &storage.SystemScope{Value: v, Registered: false})
		default:
			return nil, fmt.Errorf("failed to resolve scope %q: %w", v, err)
		}
	}
	return out, nil
}

// ToStrings projects scope records back to their values. A nil input yields
// nil.
func (r *Registry) ToStrings(scopes []*storage.SystemScope) []string {
	if scopes == nil {
		return nil
	}
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, s.Value)
	}
	return out
}

// ScopesMatch reports whether actual is permitted given expected: every
// element of actual must be contained in expected (subset test). Used both
// for introspection-caller authorization and refresh up-scoping checks.
func (r *Registry) ScopesMatch(expected, actual []string) bool {
	return util.ContainsAll(expected, actual)
}

// RemoveReservedScopes returns the scope set with all reserved values
// filtered out. The input is never mutated.
func (r *Registry) RemoveReservedScopes(scopes []string) []string {
	if scopes == nil {
		return nil
	}
	out := make([]string, 0, len(scopes))
	for _, v := range scopes {
		if _, ok := r.reserved[v]; ok {
			continue
		}
		out = append(out, v)
	}
	return out
}

// RemoveRestrictedAndReservedScopes returns the scope set with reserved
// values and all registered restricted scopes filtered out. The input is
// never mutated.
func (r *Registry) RemoveRestrictedAndReservedScopes(ctx context.Context, scopes []string) ([]string, error) {
	if scopes == nil {
		return nil, nil
	}
	out := make([]string, 0, len(scopes))
	for _, v := range scopes {
		if _, ok := r.reserved[v]; ok {
			continue
		}
		s, err := r.store.GetSystemScopeByValue(ctx, v)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve scope %q: %w", v, err)
		}
		if s != nil && s.Restricted {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// IsReserved reports whether the given value is in the reserved set
func (r *Registry) IsReserved(value string) bool {
	_, ok := r.reserved[value]
	return ok
}

// Save registers a system scope. Attempts to save a reserved scope value are
// silently rejected: nothing is persisted and nil is returned. This is the
// one place "reserved" is actively enforced rather than just filtered.
func (r *Registry) Save(ctx context.Context, s *storage.SystemScope) (*storage.SystemScope, error) {
	if s == nil {
		return nil, nil
	}
	if r.IsReserved(s.Value) {
		r.logger.Warn("Refusing to save reserved scope", "scope", s.Value)
		return nil, nil
	}
	s.Registered = true
	return r.store.SaveSystemScope(ctx, s)
}

// Defaults returns the values of all registered scopes flagged as default.
// Used when a client registration requests no scope at all.
func (r *Registry) Defaults(ctx context.Context) ([]string, error) {
	all, err := r.store.GetAllSystemScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list system scopes: %w", err)
	}
	out := make([]string, 0, len(all))
	for _, s := range all {
		if s.DefaultScope {
			out = append(out, s.Value)
		}
	}
	return out, nil
}

// All returns every registered system scope
func (r *Registry) All(ctx context.Context) ([]*storage.SystemScope, error) {
	return r.store.GetAllSystemScopes(ctx)
}
