// Package security provides cross-cutting security features for the token
// engine: audit logging with PII hashing, and per-identifier rate limiting
// with LRU bounds.
package security
