// Package util provides shared string-set helpers and log-safe truncation
// used across the oidc-core library.
package util
