// Package worker implements the background watch over the chain files that
// keeps the replayed state current.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
)

// defaultPollInterval represents the interval of time between checks of the
// index file for newly written blocks.
const defaultPollInterval = 30 * time.Second

// Worker watches the index file and reloads the state as it grows.
type Worker struct {
	state     *state.State
	wg        sync.WaitGroup
	ticker    *time.Ticker
	shut      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	reload    chan bool
	evHandler state.EventHandler
	lastSize  int64
}

// Run creates a Worker, registers the Worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, pollInterval time.Duration, evHandler state.EventHandler) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Construct and register this Worker to the state. During
	// initialization this Worker needs access to the state.
	w := Worker{
		state:     st,
		ticker:    time.NewTicker(pollInterval),
		shut:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		reload:    make(chan bool, 1),
		evHandler: evHandler,
	}

	// Register this Worker with the state package.
	st.Worker = &w

	// Remember the index size the state has been loaded from.
	if snap, err := st.Snapshot(); err == nil {
		w.lastSize = snap.IndexSize
	}

	// Load the set of operations needed to run.
	operations := []func(){
		w.watchOperations,
		w.reloadOperations,
	}

	// Set waitgroup to match the number of G's needed
	// for the set of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// Don't return until all G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operations G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}
}

// /////////////////////////////////////////////////////////////////
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work. A reload in flight
// is cancelled.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: cancel reload")
	w.cancel()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalReload queues a reload. If there is already a signal pending in
// the channel, just return since a reload will run.
func (w *Worker) SignalReload() {
	select {
	case w.reload <- true:
	default:
	}
	w.evHandler("worker: signalreload: reload signaled")
}

// /////////////////////////////////////////////////////////////////

// watchOperations checks the size of the index file on every tick and
// signals a reload when it grows.
func (w *Worker) watchOperations() {
	w.evHandler("worker: watchoperations: G started")
	defer w.evHandler("worker: watchoperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.checkIndex()
			}
		case <-w.shut:
			w.evHandler("worker: watchoperations: received shut signal")
			return
		}
	}
}

// checkIndex compares the index size against the last one seen.
func (w *Worker) checkIndex() {
	size, err := w.state.IndexSize()
	if err != nil {
		w.evHandler("worker: checkindex: ERROR: %s", err)
		return
	}

	if size <= w.lastSize {
		return
	}

	w.evHandler("worker: checkindex: index grew: from[%d] to[%d]", w.lastSize, size)
	w.lastSize = size
	w.SignalReload()
}

// reloadOperations runs a reload for every signal received.
func (w *Worker) reloadOperations() {
	w.evHandler("worker: reloadoperations: G started")
	defer w.evHandler("worker: reloadoperations: G completed")

	for {
		select {
		case <-w.reload:
			if !w.isShutdown() {
				w.runReload()
			}
		case <-w.shut:
			w.evHandler("worker: reloadoperations: received shut signal")
			return
		}
	}
}

// runReload rebuilds the state from the chain files.
func (w *Worker) runReload() {
	w.evHandler("worker: runreload: started")
	defer w.evHandler("worker: runreload: completed")

	if err := w.state.Reload(w.ctx); err != nil {
		w.evHandler("worker: runreload: ERROR: %s", err)
		return
	}

	if snap, err := w.state.Snapshot(); err == nil {
		w.evHandler("worker: runreload: head[%d]", snap.HeadBlockNum)
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
