// Package clientpolicy validates and normalizes client registration and
// update requests before they reach storage.
//
// The Validator applies every rule in one pass: refresh_token and
// offline_access co-occurrence, key consistency (jwks XOR jwks_uri, inline
// sets must parse), reserved scope stripping, sector identifier
// verification, and the strict HEART profile when enabled. Sector
// identifier documents are fetched through a caching, rate-limited,
// single-flight fetcher so bursts of registrations do not hammer the
// publishing host.
package clientpolicy
