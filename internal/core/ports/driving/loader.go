package driving

import "context"

// LoaderState is the lifecycle state of the background loader.
type LoaderState string

const (
	// LoaderIdle means the loader has not started.
	LoaderIdle LoaderState = "idle"

	// LoaderRunning means batches are being processed.
	LoaderRunning LoaderState = "running"

	// LoaderDraining means shutdown was requested and the current
	// document is finishing.
	LoaderDraining LoaderState = "draining"

	// LoaderStopped means the loader halted, either by shutdown or
	// after repeated listing failures.
	LoaderStopped LoaderState = "stopped"
)

// LoaderService progressively registers the tablet's documents in the
// background so lookups and suggestions work without a full upfront scan.
type LoaderService interface {
	// Start launches the background loop. Calling Start twice is a no-op.
	Start(ctx context.Context)

	// Stop requests shutdown and waits for the loop to drain.
	Stop()

	// State reports the current lifecycle state.
	State() LoaderState

	// Loaded reports how many documents have been registered so far.
	Loaded() int

	// LoadAll synchronously registers every document and returns the
	// count. It shares the registry with the background loop.
	LoadAll(ctx context.Context) (int, error)
}
