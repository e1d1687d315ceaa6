// Package internal contains the core implementation packages for cwrap.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - build: Build runner, serialized orchestrator, build state and error page
//   - config: Configuration management with validation
//   - documents: JSON document store over a billy filesystem
//   - errors: Typed errors and their HTTP mapping
//   - explorer: Opening folders in the OS file browser
//   - logging: Structured logging over log/slog
//   - routes: Route paths and the on-disk route tree
//   - server: HTTP API, build gate and static serving
//   - version: Build identity
//   - watcher: File system monitoring with debouncing
//   - websocket: Live reload hub
//
// # Design Principles
//
// Filesystem access goes through billy so handlers and stores can be tested
// against memfs. The build state is only written by the orchestrator; every
// other component reads snapshots.
package internal
