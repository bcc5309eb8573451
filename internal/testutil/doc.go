// Package testutil provides shared test helpers: a controllable clock and
// entity fixtures used by the engine's test suites.
package testutil
