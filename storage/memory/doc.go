// Package memory provides an in-memory implementation of the oidc-core
// storage contracts, guarded by a single RWMutex. It is suitable for
// development, testing, and single-instance deployments; the engine's
// atomicity requirements (one-time authorization code consumption, consistent
// client cascade deletes) are met by performing each operation under the
// write lock.
package memory
