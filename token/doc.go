// Package token implements the central token engine: access and refresh
// token issuance, PKCE proof verification, the refresh grant with strict
// scope narrowing, revocation with cascade, and the expired-state sweep.
//
// A refresh request may narrow the originally granted scope but never widen
// it, and a refresh token is minted only for clients that allow refresh and
// grants that include offline_access. Tokens pass through an optional
// Enhancer before persistence; the JWTEnhancer signs them as compact JWTs.
package token
