// Package introspection projects tokens into the RFC 7662 introspection
// response shape. It is a pure projector: it reads token and authentication
// state and never touches storage.
package introspection
