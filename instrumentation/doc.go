// Package instrumentation provides OpenTelemetry metrics and tracing for the
// oidc-core engine.
//
// When disabled, no-op providers are used so instrumentation calls carry zero
// overhead. When enabled, the caller supplies SDK providers wired to the
// exporter of their choice; this package never configures exporters itself.
//
// Metric instruments cover token issuance/refresh/revocation, PKCE failures,
// authorization and device code lifecycles, expiry sweep deletions, client
// policy rejections, and sector identifier fetches, plus observable gauges
// for storage sizes.
package instrumentation
