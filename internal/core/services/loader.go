package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
	"github.com/custodia-labs/slate/internal/core/ports/driving"
	"github.com/custodia-labs/slate/internal/logger"
)

// Loader batch tuning.
const (
	loaderBatchSize = 10
	loaderMaxErrors = 3
)

// Ensure Loader implements the interface.
var _ driving.LoaderService = (*Loader)(nil)

// Loader progressively registers the transport's documents into the
// shared registry, batch by batch. Transport errors back off
// exponentially; after loaderMaxErrors consecutive failures the loop
// stops for good. Shutdown is checked at the top of every round and
// before each document.
type Loader struct {
	transport driven.Transport
	registry  *Registry

	batchSize int
	sleep     func(ctx context.Context, d time.Duration) bool

	mu      sync.Mutex
	state   driving.LoaderState
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// LoaderOptions tunes the loader, mostly for tests.
type LoaderOptions struct {
	// BatchSize overrides the number of documents per round.
	BatchSize int

	// Sleep replaces the backoff sleep. It returns false when shutdown
	// interrupted the wait.
	Sleep func(ctx context.Context, d time.Duration) bool
}

// NewLoader constructs a loader over the given transport and registry.
func NewLoader(transport driven.Transport, registry *Registry, opts LoaderOptions) *Loader {
	l := &Loader{
		transport: transport,
		registry:  registry,
		batchSize: opts.BatchSize,
		sleep:     opts.Sleep,
		state:     driving.LoaderIdle,
		done:      make(chan struct{}),
	}
	if l.batchSize <= 0 {
		l.batchSize = loaderBatchSize
	}
	if l.sleep == nil {
		l.sleep = l.wait
	}
	return l
}

// Start launches the background loop. A second call is a no-op.
func (l *Loader) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	l.state = driving.LoaderRunning

	runID := uuid.NewString()[:8]
	logger.Info("loader %s starting (batch size %d)", runID, l.batchSize)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx)
		logger.Info("loader %s finished with %d documents", runID, l.registry.Count())
	}()
}

// Stop requests shutdown and waits for the loop to finish. Safe to call
// before Start and more than once.
func (l *Loader) Stop() {
	l.mu.Lock()
	select {
	case <-l.done:
	default:
		close(l.done)
		if l.state == driving.LoaderRunning {
			l.state = driving.LoaderDraining
		}
	}
	l.mu.Unlock()

	l.wg.Wait()

	l.mu.Lock()
	l.state = driving.LoaderStopped
	l.mu.Unlock()
}

// State reports the loader's lifecycle state.
func (l *Loader) State() driving.LoaderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Loaded reports how many documents are registered.
func (l *Loader) Loaded() int {
	return l.registry.Count()
}

// LoadAll registers every document in one synchronous pass and returns
// the registry count. Meant for transports cheap enough to front-load.
func (l *Loader) LoadAll(ctx context.Context) (int, error) {
	docs, err := l.transport.ListTree(ctx, 0)
	if err != nil {
		return l.registry.Count(), fmt.Errorf("load all: %w", err)
	}
	l.registerBatch(docs)
	return l.registry.Count(), nil
}

// run is the background loop. Each round lists one batch beyond what is
// already registered and registers the overlap idempotently.
func (l *Loader) run(ctx context.Context) {
	consecutive := 0
	limit := l.batchSize

	for {
		if l.shutdown(ctx) {
			l.setState(driving.LoaderStopped)
			return
		}

		docs, err := l.transport.ListTree(ctx, limit)
		if err != nil {
			if ctx.Err() != nil {
				l.setState(driving.LoaderStopped)
				return
			}
			consecutive++
			if consecutive >= loaderMaxErrors {
				logger.Error("loader stopped after %d consecutive listing failures: %v", consecutive, err)
				l.setState(driving.LoaderStopped)
				return
			}
			backoff := time.Duration(1<<consecutive) * time.Second
			logger.Warn("listing failed (%d/%d), retrying in %s: %v", consecutive, loaderMaxErrors, backoff, err)
			if !l.sleep(ctx, backoff) {
				l.setState(driving.LoaderStopped)
				return
			}
			continue
		}
		consecutive = 0

		byID := domain.DocumentsByID(docs)
		for i := range docs {
			if l.shutdown(ctx) {
				l.setState(driving.LoaderStopped)
				return
			}
			l.register(docs[i], byID)
		}

		// A short listing means the tree is fully registered.
		if len(docs) < limit {
			l.setState(driving.LoaderStopped)
			return
		}
		limit += l.batchSize

		// Yield between batches so the transport is not saturated.
		if !l.sleep(ctx, time.Second) {
			l.setState(driving.LoaderStopped)
			return
		}
	}
}

// registerBatch registers every visible document of a listing.
func (l *Loader) registerBatch(docs []domain.Document) {
	byID := domain.DocumentsByID(docs)
	for i := range docs {
		l.register(docs[i], byID)
	}
}

// register adds one document to the registry unless archived.
func (l *Loader) register(doc domain.Document, byID map[string]*domain.Document) {
	if doc.IsArchived() {
		return
	}
	path := domain.DocumentPath(&doc, byID)
	if l.registry.Register(doc, path) {
		logger.Debug("registered %q (%s)", doc.Name, doc.ID)
	}
}

// shutdown reports whether stop was requested or the context ended.
func (l *Loader) shutdown(ctx context.Context) bool {
	select {
	case <-l.done:
		return true
	default:
	}
	return ctx.Err() != nil
}

// wait sleeps for d unless shutdown interrupts it.
func (l *Loader) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.done:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// setState records a lifecycle transition.
func (l *Loader) setState(state driving.LoaderState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
}
