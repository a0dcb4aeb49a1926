// Package state is the core API for the virtual node. It owns the block
// store and the ledger replayed from it, and publishes the replayed state as
// an immutable snapshot.
package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/genesis"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
)

// ErrNotLoaded is returned by queries made before the first replay is done.
var ErrNotLoaded = errors.New("blockchain state not loaded yet")

// EventHandler defines a function that is called
// when events occur in the processing of replaying blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented
// by any package providing support for watching the chain files.
type Worker interface {
	Shutdown()
	SignalReload()
}

// Status is the lifecycle of the published state.
type Status int32

// Set of lifecycle values.
const (
	StatusUninitialized Status = iota
	StatusReplaying
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusReplaying:
		return "replaying"
	case StatusReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// /////////////////////////////////////////////////////////////////

// Config represents the configuration required
// to start the virtual node.
type Config struct {
	DataDir          string
	Genesis          genesis.Genesis
	CacheSize        int
	PrefetchDepth    int
	ProgressInterval uint64
	EvHandler        EventHandler
}

// Snapshot is the state produced by one complete replay pass. It is never
// modified after it has been published.
type Snapshot struct {
	HeadBlockNum  uint64
	HeadBlockID   string
	HeadBlockTime time.Time
	TotalBlocks   uint64
	IndexSize     int64
	DB            *database.Database
	Replay        ReplayStatus
}

// State manages the replayed blockchain state.
type State struct {
	evHandler        EventHandler
	genesis          genesis.Genesis
	prefetchDepth    int
	progressInterval uint64

	store *storage.Store

	reloadMu sync.Mutex
	status   atomic.Int32
	snapshot atomic.Pointer[Snapshot]
	progress atomic.Pointer[ReplayStatus]
	reloads  atomic.Uint64

	Worker Worker
}

// New constructs the state and opens the block store. Nothing is replayed
// until Load is called.
func New(cfg Config) (*State, error) {
	// Build a safe event handler for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	store, err := storage.Open(cfg.DataDir, cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	prefetch := cfg.PrefetchDepth
	if prefetch < 1 {
		prefetch = 1
	}

	interval := cfg.ProgressInterval
	if interval == 0 {
		interval = 100_000
	}

	state := State{
		evHandler:        ev,
		genesis:          cfg.Genesis,
		prefetchDepth:    prefetch,
		progressInterval: interval,
		store:            store,
	}

	// The Worker is not set here. The call to worker.Run will assign
	// itself and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Wait for any reload in flight before closing the files.
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	return s.store.Close()
}

// Status returns the lifecycle of the published state.
func (s *State) Status() Status {
	return Status(s.status.Load())
}

// Genesis returns the genesis the state was seeded from.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// IndexSize returns the current size of the index file.
func (s *State) IndexSize() (int64, error) {
	return s.store.IndexSize()
}

// Load performs the first replay and publishes the result.
func (s *State) Load(ctx context.Context) error {
	return s.Reload(ctx)
}

// Reload replays the chain from scratch and swaps the result in once the
// pass is complete. Readers keep the previous snapshot until then. Calls are
// serialized.
func (s *State) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	first := s.snapshot.Load() == nil
	if first {
		s.status.Store(int32(StatusReplaying))
	}

	s.evHandler("state: reload: started: first[%t]", first)

	snap, err := s.replay(ctx)
	if err != nil {
		if first {
			s.status.Store(int32(StatusUninitialized))
		}
		s.progress.Store(nil)
		s.evHandler("state: reload: ERROR: %s", err)
		return err
	}

	s.snapshot.Store(snap)
	s.progress.Store(nil)
	s.status.Store(int32(StatusReady))
	s.reloads.Add(1)

	s.evHandler("state: reload: completed: head[%d] accounts[%d] accepted[%d] rejected[%d]", snap.HeadBlockNum, snap.DB.AccountCount(), snap.Replay.Operations.Accepted, snap.Replay.Operations.Rejected)

	return nil
}

// Snapshot returns the published state or ErrNotLoaded.
func (s *State) Snapshot() (*Snapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}

	return snap, nil
}
