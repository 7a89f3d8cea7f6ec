// Package driving defines the interfaces through which callers drive the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// Core services implement these interfaces, and outer surfaces (a protocol
// server, a CLI) call them.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or service package
package driving
