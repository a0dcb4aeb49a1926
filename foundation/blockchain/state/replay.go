package state

import (
	"context"
	"fmt"
	"time"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
)

// ReplayStatus reports on a replay pass, finished or in flight.
type ReplayStatus struct {
	Status      string            `json:"status"`
	Reloading   bool              `json:"reloading"`
	Reloads     uint64            `json:"reloads"`
	TotalBlocks uint64            `json:"total_blocks"`
	Current     uint64            `json:"current_block"`
	Processed   uint64            `json:"processed_blocks"`
	Empty       uint64            `json:"empty_slots"`
	Partial     uint64            `json:"partial_blocks"`
	Corrupt     uint64            `json:"corrupt_blocks"`
	Operations  database.Counters `json:"operations"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration_ns"`
}

// fetched is one slot read ahead of the replay loop.
type fetched struct {
	block *storage.Block
	err   error
	num   uint64
	empty uint64
}

// replay folds every block in the store into a fresh ledger.
func (s *State) replay(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	db := database.New()
	if err := s.genesis.Seed(db); err != nil {
		return nil, fmt.Errorf("seeding genesis: %w", err)
	}

	indexSize, err := s.store.IndexSize()
	if err != nil {
		return nil, err
	}

	it, err := s.store.ForEach()
	if err != nil {
		return nil, err
	}

	status := ReplayStatus{
		Status:      StatusReplaying.String(),
		Reloading:   s.snapshot.Load() != nil,
		Reloads:     s.reloads.Load(),
		TotalBlocks: it.Total(),
		StartedAt:   start,
	}
	s.progress.Store(&status)

	snap := Snapshot{
		TotalBlocks: it.Total(),
		IndexSize:   indexSize,
		DB:          db,
	}

	// Reading and decoding run ahead of the ledger on their own goroutine.
	// Operations are applied here, one block at a time, in chain order.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	blocks := make(chan fetched, s.prefetchDepth)
	go func() {
		defer close(blocks)
		for !it.Done() {
			block, err := it.Next()
			if block == nil && err == nil {
				continue
			}

			select {
			case blocks <- fetched{block: block, err: err, num: it.Current(), empty: it.Empty()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var lastReport uint64
	for f := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		status.Current = f.num
		status.Empty = f.empty

		if f.err != nil {
			status.Corrupt++
			s.evHandler("state: replay: block[%d]: ERROR: %s", f.num, f.err)

			// The slot is indexed, so it still counts as the head.
			if entry, err := s.store.ReadIndexEntry(f.num); err == nil && entry != nil {
				snap.HeadBlockNum = f.num
				snap.HeadBlockID = entry.ID()
			}
			continue
		}

		s.applyBlock(db, f.block, &status)

		snap.HeadBlockNum = f.block.Number
		snap.HeadBlockID = f.block.BlockID
		snap.HeadBlockTime = f.block.Timestamp.Time

		if f.num-lastReport >= s.progressInterval {
			lastReport = f.num
			s.reportProgress(&status, db)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The iterator stops before the last slot when it is empty.
	if total := it.Total(); total > 1 {
		status.Current = total - 1
	}
	status.Empty = it.Empty()

	if err := db.Verify(); err != nil {
		return nil, fmt.Errorf("replay invariant: %w", err)
	}

	status.Status = StatusReady.String()
	status.Reloading = false
	status.Reloads++
	status.Operations = db.Counters()
	status.Duration = time.Since(start)
	snap.Replay = status

	s.evHandler("state: replay: completed: blocks[%d] empty[%d] partial[%d] corrupt[%d] duration[%s]", status.Processed, status.Empty, status.Partial, status.Corrupt, status.Duration)

	return &snap, nil
}

// applyBlock applies every decoded operation in the block followed by the
// producer's reward.
func (s *State) applyBlock(db *database.Database, block *storage.Block, status *ReplayStatus) {
	switch block.Status {
	case storage.StatusOK:
		status.Processed++
	case storage.StatusPartial:
		status.Processed++
		status.Partial++
		s.evHandler("state: replay: block[%d]: partial: %s", block.Number, block.Err)
	default:
		status.Corrupt++
		s.evHandler("state: replay: block[%d]: corrupt: %s", block.Number, block.Err)
	}

	for _, tx := range block.Transactions {
		for _, op := range tx.Operations {
			if err := db.ApplyOperation(block.Number, op); err != nil {
				s.evHandler("state: replay: rejected: %s", err)
			}
		}
	}

	if s.genesis.BlockReward > 0 && block.Witness != "" {
		account, ok := s.genesis.WitnessAccount(block.Witness)
		if !ok {
			return
		}
		if err := db.ApplyBlockReward(block.SignedBlock, account, s.genesis.BlockReward); err != nil {
			s.evHandler("state: replay: block[%d]: reward: ERROR: %s", block.Number, err)
		}
	}
}

// reportProgress publishes a copy of the running status.
func (s *State) reportProgress(status *ReplayStatus, db *database.Database) {
	status.Operations = db.Counters()
	status.Duration = time.Since(status.StartedAt)

	progress := *status
	s.progress.Store(&progress)

	var pct float64
	if status.TotalBlocks > 1 {
		pct = float64(status.Current) / float64(status.TotalBlocks-1) * 100
	}

	rate := float64(status.Current) / status.Duration.Seconds()

	s.evHandler("state: replay: progress: block[%d/%d] pct[%.1f] rate[%.0f blocks/s] accepted[%d] rejected[%d]", status.Current, status.TotalBlocks-1, pct, rate, status.Operations.Accepted, status.Operations.Rejected)
}

// ReplayStatus returns the status of the replay in flight, or of the last
// completed replay when none is running.
func (s *State) ReplayStatus() ReplayStatus {
	if progress := s.progress.Load(); progress != nil {
		return *progress
	}

	if snap := s.snapshot.Load(); snap != nil {
		return snap.Replay
	}

	return ReplayStatus{Status: StatusUninitialized.String()}
}
