package game

import (
	"sort"

	"github.com/frameball/server/pkg/game/constants"
)

// SpawnScheduler rate-limits body creation by draining a FIFO queue of
// pending identifiers across ticks, at most SpawnDrainPerTick per tick,
// so a burst of completions cannot spike a frame.
//
// It also owns the non-replicated pool of unspawned identifiers. The
// refill policy prefers every phase-1 identifier before any phase-2
// identifier.
type SpawnScheduler struct {
	pending []int
	queued  map[int]bool
	pool    map[int]bool
}

// NewSpawnScheduler builds a scheduler whose pool holds the given
// unspawned identifiers.
func NewSpawnScheduler(poolIDs []int) *SpawnScheduler {
	pool := make(map[int]bool, len(poolIDs))
	for _, id := range poolIDs {
		pool[id] = true
	}
	return &SpawnScheduler{
		queued: make(map[int]bool),
		pool:   pool,
	}
}

// Enqueue schedules an identifier for spawning, claiming it from the pool.
// Identifiers already queued or not in the pool are ignored.
func (s *SpawnScheduler) Enqueue(id int) bool {
	if s.queued[id] || !s.pool[id] {
		return false
	}
	delete(s.pool, id)
	s.queued[id] = true
	s.pending = append(s.pending, id)
	return true
}

// EnqueueNext claims the next unclaimed identifier from the pool: all
// phase-1 identifiers are preferred over any phase-2 identifier, lowest
// first within a phase.
func (s *SpawnScheduler) EnqueueNext() (int, bool) {
	if len(s.pool) == 0 {
		return 0, false
	}
	ids := make([]int, 0, len(s.pool))
	for id := range s.pool {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	// Phase-1 ids are numerically below the phase-2 offset, so the sorted
	// order already ranks them first.
	id := ids[0]
	s.Enqueue(id)
	return id, true
}

// OnSlotCompleted applies the refill policy after a successful solve.
// Completing phase 1 enqueues the slot's phase-2 identifier if unclaimed;
// completing phase 2, or a phase-2 identifier no longer available, falls
// back to the next pool identifier.
func (s *SpawnScheduler) OnSlotCompleted(slot int, completedPhase int) {
	if completedPhase == 1 {
		if s.Enqueue(slot + constants.Phase2IDOffset) {
			return
		}
	}
	s.EnqueueNext()
}

// Drain returns up to SpawnDrainPerTick pending identifiers in FIFO order.
func (s *SpawnScheduler) Drain() []int {
	n := len(s.pending)
	if n > constants.SpawnDrainPerTick {
		n = constants.SpawnDrainPerTick
	}
	if n == 0 {
		return nil
	}
	drained := s.pending[:n]
	s.pending = append([]int(nil), s.pending[n:]...)
	for _, id := range drained {
		delete(s.queued, id)
	}
	return drained
}

// Return puts an identifier back into the pool, for objects leaving the
// active set without being consumed.
func (s *SpawnScheduler) Return(id int) {
	if !s.queued[id] {
		s.pool[id] = true
	}
}

// PendingCount returns the number of identifiers awaiting spawn.
func (s *SpawnScheduler) PendingCount() int {
	return len(s.pending)
}

// PoolCount returns the number of unclaimed identifiers.
func (s *SpawnScheduler) PoolCount() int {
	return len(s.pool)
}
