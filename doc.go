// Package oidc provides the shared configuration, error taxonomy, and
// protocol constants for the oidc-core token and client-policy engine.
//
// The engine itself is split across subpackages:
//
//   - scope: scope registry and filtering
//   - clientpolicy: client registration/update policy, including the HEART profile
//   - authcode: one-time authorization codes
//   - devicecode: the device authorization grant (RFC 8628)
//   - token: access/refresh token issuance, PKCE verification, revocation, sweeps
//   - introspection: RFC 7662 introspection response assembly
//   - storage: entity types and the persistence contracts, with an in-memory
//     implementation under storage/memory
//
// All collaborators (storage, clock, HTTP client for sector identifier
// fetches, token enhancer) are passed in explicitly at construction time.
package oidc
