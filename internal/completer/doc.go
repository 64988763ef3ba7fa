// Package completer owns a loaded model handle and serves single-shot text
// completions against it. It is structured into small files by concern:
//
//   - completer.go: Completer type, Setup, Close, readiness.
//   - config.go: Config and package defaults; New applies defaults.
//   - transform.go: Transform, Complete, Generate and the request path.
//   - admission.go: single in-flight generation with a bounded wait queue.
//   - cache.go: optional TTL cache of completion results.
//   - errors.go: error values and helpers (IsNotLoaded, IsTooBusy, ...).
//   - events.go: lifecycle events for observers and tests.
//   - metrics.go: Prometheus collectors.
//   - status.go: Status reporting.
//
// The lifecycle is unloaded → loaded, driven by Setup; Close returns the
// handle to unloaded. Transform before a successful Setup reports ErrNotLoaded.
package completer
