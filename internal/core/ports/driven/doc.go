// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Transport: Fetches documents from the tablet (cloud sync or SSH shell)
//   - ExtractionCache: Whole-document extraction result cache
//   - PageCache: Per-page recognised text cache
//   - ConfigStore: Application configuration
//   - CredentialsStore: Device/user token persistence
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Recogniser: Handwriting recognition engines. Without any, documents
//     fall back to typed text only.
//   - Sampler: Session-backed transcription. Only enabled while a client
//     session with sampling support is attached.
//   - PageDecoder / PageRenderer: Page file decoding and rasterisation.
//     Without them, handwriting recognition is disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
