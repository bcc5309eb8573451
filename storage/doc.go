// Package storage provides the entity types and persistence contracts for the
// oidc-core engine.
//
// The interfaces defined here are the only view the engine has of its
// persistence collaborator:
//   - ClientStore: registered OAuth clients
//   - TokenStore: access and refresh tokens
//   - AuthenticationHolderStore: durable authentication snapshots
//   - AuthorizationCodeStore: one-time authorization codes
//   - DeviceCodeStore: device authorization grant state
//   - SystemScopeStore: registered system scopes
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development, testing, and
//     single-instance deployments
package storage
